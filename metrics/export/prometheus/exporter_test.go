package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	goRefresh "github.com/MrEthical07/goRefresh"
	"github.com/MrEthical07/goRefresh/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot goRefresh.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goRefresh.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                       { return f.dropped }

func newFakeSource() *fakeSource {
	return &fakeSource{
		snapshot: goRefresh.MetricsSnapshot{
			Counters: map[goRefresh.MetricID]uint64{
				goRefresh.MetricLoginSuccess:         7,
				goRefresh.MetricRefreshSuccess:       3,
				goRefresh.MetricRefreshReuseDetected: 1,
			},
			Histograms: map[goRefresh.MetricID][]uint64{
				// 2 samples <=5ms, 1 sample <=25ms, 1 overflow sample.
				goRefresh.MetricAuthenticateLatency: {2, 0, 1, 0, 0, 0, 0, 1},
			},
		},
		dropped: 4,
	}
}

func gather(t *testing.T, source *fakeSource) map[string]*dto.MetricFamily {
	t.Helper()

	registry := prometheus.NewRegistry()
	if err := registry.Register(NewCollectorFromSource(source)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

func TestCollectorExportsCounters(t *testing.T) {
	families := gather(t, newFakeSource())

	counterValue := func(name string) float64 {
		t.Helper()
		mf, ok := families[name]
		if !ok {
			t.Fatalf("metric %q not exported", name)
		}
		if mf.GetType() != dto.MetricType_COUNTER {
			t.Fatalf("metric %q is not a counter", name)
		}
		return mf.GetMetric()[0].GetCounter().GetValue()
	}

	if got := counterValue("gorefresh_login_success_total"); got != 7 {
		t.Fatalf("login_success = %v, want 7", got)
	}
	if got := counterValue("gorefresh_refresh_success_total"); got != 3 {
		t.Fatalf("refresh_success = %v, want 3", got)
	}
	if got := counterValue("gorefresh_refresh_reuse_detected_total"); got != 1 {
		t.Fatalf("reuse_detected = %v, want 1", got)
	}
	// Absent snapshot entries export as zero rather than disappearing.
	if got := counterValue("gorefresh_logout_total"); got != 0 {
		t.Fatalf("logout = %v, want 0", got)
	}
	if got := counterValue("gorefresh_audit_dropped_total"); got != 4 {
		t.Fatalf("audit_dropped = %v, want 4", got)
	}
}

func TestCollectorExportsHistogram(t *testing.T) {
	families := gather(t, newFakeSource())

	mf, ok := families["gorefresh_authenticate_latency_seconds"]
	if !ok {
		t.Fatal("latency histogram not exported")
	}
	if mf.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatal("latency metric is not a histogram")
	}

	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 4 {
		t.Fatalf("sample count = %d, want 4", h.GetSampleCount())
	}

	cumulative := map[float64]uint64{}
	for _, b := range h.GetBucket() {
		cumulative[b.GetUpperBound()] = b.GetCumulativeCount()
	}
	if cumulative[0.005] != 2 {
		t.Fatalf("le=0.005 bucket = %d, want 2", cumulative[0.005])
	}
	if cumulative[0.025] != 3 {
		t.Fatalf("le=0.025 bucket = %d, want 3", cumulative[0.025])
	}
	if cumulative[0.5] != 3 {
		t.Fatalf("le=0.5 bucket = %d, want 3", cumulative[0.5])
	}
}

func TestCollectorExportsEveryDefinedMetric(t *testing.T) {
	families := gather(t, newFakeSource())

	for _, def := range internaldefs.CounterDefs {
		if _, ok := families[def.Name]; !ok {
			t.Fatalf("counter %q missing from scrape", def.Name)
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		if _, ok := families[def.Name]; !ok {
			t.Fatalf("histogram %q missing from scrape", def.Name)
		}
	}
}

func TestCollectorEmptySnapshot(t *testing.T) {
	source := &fakeSource{
		snapshot: goRefresh.MetricsSnapshot{
			Counters:   map[goRefresh.MetricID]uint64{},
			Histograms: map[goRefresh.MetricID][]uint64{},
		},
	}
	families := gather(t, source)

	mf := families["gorefresh_authenticate_latency_seconds"]
	if mf == nil {
		t.Fatal("histogram missing for empty snapshot")
	}
	if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 0 {
		t.Fatalf("empty snapshot sample count = %d", got)
	}
}
