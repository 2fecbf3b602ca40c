package goRefresh

import "time"

// SecurityReport is a static summary of the engine's security-relevant
// configuration, for startup logs and operator dashboards. It never contains
// key material.
type SecurityReport struct {
	SigningAlgorithm string
	AccessTTL        time.Duration
	MaxAccessTTL     time.Duration
	RefreshTTL       time.Duration
	MaxRefreshTTL    time.Duration
	RetentionWindow  time.Duration

	RotationEnabled       bool
	ReuseDetectionEnabled bool
	ThrottleActive        bool
	ThrottleMaxAttempts   int
	ThrottleWindow        time.Duration

	AuditEnabled      bool
	MetricsEnabled    bool
	LatencyHistograms bool
}

// SecurityReport summarizes the running configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil || !e.ready {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		MaxAccessTTL:     e.config.JWT.MaxAccessTTL,
		RefreshTTL:       e.config.Refresh.TTL,
		MaxRefreshTTL:    e.config.Refresh.MaxTTL,
		RetentionWindow:  e.config.Refresh.RetentionWindow,

		// Rotation and reuse detection are structural; they cannot be turned
		// off, so the report states them explicitly for audits.
		RotationEnabled:       true,
		ReuseDetectionEnabled: true,
		ThrottleActive:        e.throttle != nil,
		ThrottleMaxAttempts:   e.config.Refresh.Throttle.MaxAttempts,
		ThrottleWindow:        e.config.Refresh.Throttle.Window,

		AuditEnabled:      e.config.Audit.Enabled,
		MetricsEnabled:    e.config.Metrics.Enabled,
		LatencyHistograms: e.config.Metrics.EnableLatencyHistograms,
	}
}
