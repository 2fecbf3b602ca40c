package internaldefs

import (
	goRefresh "github.com/MrEthical07/goRefresh"
)

// CounterDef binds one engine counter to its exported name.
type CounterDef struct {
	ID   goRefresh.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its exported name.
type HistogramDef struct {
	ID   goRefresh.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goRefresh.MetricLoginSuccess, Name: "gorefresh_login_success_total", Help: "Successful login issuances."},
	{ID: goRefresh.MetricLoginFailure, Name: "gorefresh_login_failure_total", Help: "Failed login issuances."},
	{ID: goRefresh.MetricRefreshSuccess, Name: "gorefresh_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goRefresh.MetricRefreshFailure, Name: "gorefresh_refresh_failure_total", Help: "Rejected refresh token rotations."},
	{ID: goRefresh.MetricRefreshReuseDetected, Name: "gorefresh_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: goRefresh.MetricFamilyRevoked, Name: "gorefresh_family_revoked_total", Help: "Family-wide revocations."},
	{ID: goRefresh.MetricTokenIssued, Name: "gorefresh_token_issued_total", Help: "Refresh tokens written to the store."},
	{ID: goRefresh.MetricIssuanceRetry, Name: "gorefresh_issuance_retry_total", Help: "Hash collision retries during issuance."},
	{ID: goRefresh.MetricIssuanceFailed, Name: "gorefresh_issuance_failed_total", Help: "Issuance attempts that exhausted the retry budget."},
	{ID: goRefresh.MetricLogout, Name: "gorefresh_logout_total", Help: "Logout operations."},
	{ID: goRefresh.MetricAuthenticateSuccess, Name: "gorefresh_authenticate_success_total", Help: "Accepted access tokens."},
	{ID: goRefresh.MetricAuthenticateFailure, Name: "gorefresh_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: goRefresh.MetricSessionsListed, Name: "gorefresh_sessions_listed_total", Help: "Session listing operations."},
	{ID: goRefresh.MetricDegradedFallback, Name: "gorefresh_degraded_fallback_total", Help: "Store operations served on a degraded non-transactional path."},
}

var HistogramDefs = []HistogramDef{
	{ID: goRefresh.MetricAuthenticateLatency, Name: "gorefresh_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, text form, +Inf
// last.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundValues mirror HistogramBounds as float64 seconds, without
// the +Inf bucket.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix are name-safe forms of HistogramBounds for exporters
// that encode the bound into the instrument name.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
