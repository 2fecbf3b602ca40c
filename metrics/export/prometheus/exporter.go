package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	goRefresh "github.com/MrEthical07/goRefresh"
	"github.com/MrEthical07/goRefresh/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() goRefresh.MetricsSnapshot
	AuditDropped() uint64
}

var auditDroppedDesc = prometheus.NewDesc(
	"gorefresh_audit_dropped_total",
	"Dropped audit events due to dispatcher backpressure.",
	nil, nil,
)

// Collector renders engine snapshots as const metrics on each scrape. It is
// an unchecked collector: Describe sends nothing, so metrics may appear and
// disappear with engine configuration.
type Collector struct {
	source       metricsSource
	counterDescs map[goRefresh.MetricID]*prometheus.Desc
	histDescs    map[goRefresh.MetricID]*prometheus.Desc
}

// NewCollector wraps engine as a prometheus.Collector.
func NewCollector(engine *goRefresh.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource wraps any snapshot source, typically a test fake.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:       source,
		counterDescs: make(map[goRefresh.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histDescs:    make(map[goRefresh.MetricID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counterDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return c
}

// Describe is intentionally empty, making this an unchecked collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect reads one snapshot and emits every defined metric.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			c.counterDescs[def.ID],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.ID]),
		)
	}

	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(raw)

		buckets := make(map[float64]uint64, len(internaldefs.HistogramBoundValues))
		for i, bound := range internaldefs.HistogramBoundValues {
			buckets[bound] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]

		// The lock-free core records bucket counts only; the sum is not
		// tracked, so it is exported as zero.
		ch <- prometheus.MustNewConstHistogram(c.histDescs[def.ID], count, 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(
		auditDroppedDesc,
		prometheus.CounterValue,
		float64(c.source.AuditDropped()),
	)
}

// NewHandler registers a collector for engine on a fresh registry and
// returns the scrape handler.
func NewHandler(engine *goRefresh.Engine) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(engine))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
