package goRefresh

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful Login calls.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts Login calls that failed to issue a pair.
	MetricLoginFailure
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rotations rejected as invalid, expired, or
	// unknown.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts presentations of already consumed
	// tokens.
	MetricRefreshReuseDetected
	// MetricFamilyRevoked counts family-wide revocations, both reuse-triggered
	// and explicit.
	MetricFamilyRevoked
	// MetricTokenIssued counts refresh tokens written to the store.
	MetricTokenIssued
	// MetricIssuanceRetry counts hash-collision retries during issuance.
	MetricIssuanceRetry
	// MetricIssuanceFailed counts issuance attempts that exhausted the retry
	// budget.
	MetricIssuanceFailed
	// MetricLogout counts Logout calls that revoked a family.
	MetricLogout
	// MetricAuthenticateSuccess counts access tokens accepted by Authenticate.
	MetricAuthenticateSuccess
	// MetricAuthenticateFailure counts access tokens rejected by Authenticate.
	MetricAuthenticateFailure
	// MetricSessionsListed counts ListUserSessions calls.
	MetricSessionsListed
	// MetricDegradedFallback counts store operations that ran on a degraded
	// non-transactional path.
	MetricDegradedFallback
	// MetricAuthenticateLatency is the histogram of Authenticate durations.
	MetricAuthenticateLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricFamilyRevoked:        "family_revoked",
	MetricTokenIssued:          "token_issued",
	MetricIssuanceRetry:        "issuance_retry",
	MetricIssuanceFailed:       "issuance_failed",
	MetricLogout:               "logout",
	MetricAuthenticateSuccess:  "authenticate_success",
	MetricAuthenticateFailure:  "authenticate_failure",
	MetricSessionsListed:       "sessions_listed",
	MetricDegradedFallback:     "degraded_fallback",
	MetricAuthenticateLatency:  "authenticate_latency",
}

// String returns the snake_case name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined counter and histogram ID, in order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the upper bounds, in milliseconds, of the latency
// histogram buckets. The last bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]int64{5, 10, 25, 50, 100, 250, 500}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the engine's lock-free counter set. The zero value is disabled;
// a nil receiver is safe everywhere.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a counter set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recording.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample for id. Only histogram IDs accept samples.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricAuthenticateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. Counters are read one at a
// time; the snapshot is consistent per counter, not across counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricAuthenticateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range HistogramBucketBounds {
		if ms <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
