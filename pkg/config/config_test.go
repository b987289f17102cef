package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hark-assistant/hark/pkg/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hark.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if got := cfg.Policy.RequireConfirmation; len(got) != 1 || got[0] != "SystemControl" {
		t.Errorf("Expected [SystemControl] gated by default, got %v", got)
	}
	if !cfg.Storage.Enabled {
		t.Error("Expected storage enabled by default")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
retry:
  max_attempts: 5
  initial_backoff: 100ms
  max_backoff: 2s
  backoff_multiplier: 1.5
policy:
  require_confirmation: [SystemControl, CloseApp]
  max_step_timeout: 10s
  max_plan_timeout: 1m
logging:
  level: debug
  format: json
storage:
  enabled: false
actions:
  notes_dir: /tmp/notes
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	retry := cfg.RetryPolicy()
	if retry.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", retry.MaxAttempts)
	}
	if retry.InitialBackoff != 100*time.Millisecond {
		t.Errorf("Expected 100ms initial backoff, got %s", retry.InitialBackoff)
	}
	if retry.MaxBackoff != 2*time.Second {
		t.Errorf("Expected 2s max backoff, got %s", retry.MaxBackoff)
	}

	policy := cfg.ExecutionPolicy()
	if !policy.RequireConfirmation[engine.ActionCloseApp] {
		t.Error("Expected CloseApp to require confirmation")
	}
	if policy.MaxStepTimeout != 10*time.Second {
		t.Errorf("Expected 10s step timeout, got %s", policy.MaxStepTimeout)
	}
	if policy.MaxPlanTimeout != time.Minute {
		t.Errorf("Expected 1m plan timeout, got %s", policy.MaxPlanTimeout)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Storage.Enabled {
		t.Error("Expected storage disabled")
	}
	if cfg.Actions.NotesDir != "/tmp/notes" {
		t.Errorf("Unexpected notes dir: %s", cfg.Actions.NotesDir)
	}

	// Untouched sections keep their defaults.
	if cfg.Metrics.ListenAddress != ":9090" {
		t.Errorf("Expected default metrics address, got %s", cfg.Metrics.ListenAddress)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/hark.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "retry: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
retry:
  initial_backoff: soon
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"too many attempts", func(c *Config) { c.Retry.MaxAttempts = 50 }},
		{"multiplier below one", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }},
		{"unknown gated kind", func(c *Config) { c.Policy.RequireConfirmation = []string{"TeleportUser"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestTelemetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	cfg.Metrics.Enabled = true

	tel := cfg.TelemetryConfig()
	if tel.Logging.Level != "warn" {
		t.Errorf("Expected warn level, got %s", tel.Logging.Level)
	}
	if !tel.Metrics.Enabled {
		t.Error("Expected metrics enabled")
	}
	if tel.ServiceName != "hark" {
		t.Errorf("Expected service name hark, got %s", tel.ServiceName)
	}
}

func TestPolicyFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.rego", "b.rego", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("package hark.custom\n"), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}

	cfg := Default()
	cfg.Policy.PolicyDir = dir

	files, err := cfg.PolicyFiles()
	if err != nil {
		t.Fatalf("PolicyFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 rego files, got %d", len(files))
	}

	cfg.Policy.PolicyDir = ""
	files, err = cfg.PolicyFiles()
	if err != nil || files != nil {
		t.Errorf("Expected no files for empty dir, got %v, %v", files, err)
	}
}
