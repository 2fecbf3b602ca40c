package goRefresh

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshFailure)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricRefreshFailure); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("disabled metrics report enabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics recorded a count: %d", got)
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("nil metrics report enabled")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics returned a count")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatal("nil snapshot not empty")
	}
}

func TestMetricsObserveBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{90 * time.Millisecond, 4},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricAuthenticateLatency, s.d)
	}

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}

	want := make([]uint64, histBucketCount)
	for _, s := range samples {
		want[s.bucket]++
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d: got %d want %d (all %v)", i, buckets[i], want[i], buckets)
		}
	}

	// Counter IDs silently ignore samples.
	m.Observe(MetricLoginSuccess, time.Millisecond)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("Observe leaked into a counter")
	}
}

func TestMetricsObserveWithoutHistogramsEnabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricAuthenticateLatency, time.Millisecond)
	if got := m.Snapshot().Histograms[MetricAuthenticateLatency]; got != nil {
		t.Fatalf("expected no histogram data, got %v", got)
	}
}

func TestMetricsSnapshotExcludesHistogramID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)

	snap := m.Snapshot()
	if _, ok := snap.Counters[MetricAuthenticateLatency]; ok {
		t.Fatal("histogram ID must not appear among counters")
	}
	if got := snap.Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected 1 login success, got %d", got)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, got)
	}
}

func TestMetricIDString(t *testing.T) {
	if MetricLoginSuccess.String() != "login_success" {
		t.Fatalf("unexpected name %q", MetricLoginSuccess.String())
	}
	if MetricAuthenticateLatency.String() != "authenticate_latency" {
		t.Fatalf("unexpected name %q", MetricAuthenticateLatency.String())
	}
	if MetricID(9999).String() != "unknown" {
		t.Fatal("out-of-range ID should stringify as unknown")
	}
}

func TestMetricIDsCoverAllNames(t *testing.T) {
	ids := MetricIDs()
	if len(ids) != int(metricIDCount) {
		t.Fatalf("expected %d IDs, got %d", metricIDCount, len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		name := id.String()
		if name == "unknown" || name == "" {
			t.Fatalf("ID %d has no name", id)
		}
		if seen[name] {
			t.Fatalf("duplicate metric name %q", name)
		}
		seen[name] = true
	}
}
