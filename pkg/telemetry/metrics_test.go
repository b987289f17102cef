package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Recording(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:       true,
		ListenAddress: ":0",
		Path:          "/metrics",
		Namespace:     "hark",
	})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordPlanStarted()
	m.RecordActionExecution("LaunchApp", true, 120*time.Millisecond)
	m.RecordActionRetry("LaunchApp")
	m.RecordCompensation("CloseApp", true)
	m.RecordPlanCompleted(true, 500*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"hark_plans_started_total 1",
		`hark_actions_executed_total{action="LaunchApp",status="success"} 1`,
		`hark_action_retries_total{action="LaunchApp"} 1`,
		`hark_compensations_total{action="CloseApp",status="success"} 1`,
		`hark_plans_completed_total{status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// No-op recording must not panic.
	m.RecordPlanStarted()
	m.RecordPlanCompleted(false, time.Second)
	m.RecordActionExecution("Wait", false, time.Second)
	m.RecordActionRetry("Wait")
	m.RecordCompensation("CloseApp", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code == 200 {
		t.Error("Expected disabled metrics handler to 404")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Logging.Level = "verbose"
	if err := bad.Validate(); err == nil {
		t.Error("Expected invalid log level to fail validation")
	}

	bad = DefaultConfig()
	bad.Tracing.Enabled = true
	bad.Tracing.Exporter = "jaeger2"
	if err := bad.Validate(); err == nil {
		t.Error("Expected invalid exporter to fail validation")
	}
}
