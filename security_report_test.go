package goRefresh

import (
	"testing"
	"time"
)

func TestSecurityReport(t *testing.T) {
	cfg := throttledConfig(5)
	cfg.Audit.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	engine, _ := newTestEngine(t, cfg)

	report := engine.SecurityReport()
	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("unexpected algorithm %q", report.SigningAlgorithm)
	}
	if report.AccessTTL != cfg.JWT.AccessTTL || report.RefreshTTL != cfg.Refresh.TTL {
		t.Fatalf("TTLs not reported: %+v", report)
	}
	if !report.RotationEnabled || !report.ReuseDetectionEnabled {
		t.Fatal("structural guarantees must always be reported enabled")
	}
	if !report.ThrottleActive || report.ThrottleMaxAttempts != 5 || report.ThrottleWindow != time.Minute {
		t.Fatalf("throttle not reported: %+v", report)
	}
	if !report.AuditEnabled || !report.MetricsEnabled || !report.LatencyHistograms {
		t.Fatalf("observability flags not reported: %+v", report)
	}
}

func TestSecurityReportZeroEngine(t *testing.T) {
	var engine Engine
	if report := engine.SecurityReport(); report != (SecurityReport{}) {
		t.Fatalf("zero engine should report nothing, got %+v", report)
	}
}
