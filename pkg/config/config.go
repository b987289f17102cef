// Package config loads and validates the hark configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hark-assistant/hark/pkg/engine"
	"github.com/hark-assistant/hark/pkg/telemetry"
)

// Config is the root configuration document.
type Config struct {
	// Retry configures per-step retry behavior.
	Retry RetryConfig `yaml:"retry"`

	// Policy configures execution limits and confirmation gating.
	Policy PolicyConfig `yaml:"policy"`

	// Logging configures structured logging.
	Logging telemetry.LoggingConfig `yaml:"logging"`

	// Tracing configures distributed tracing.
	Tracing telemetry.TracingConfig `yaml:"tracing"`

	// Metrics configures the Prometheus endpoint.
	Metrics telemetry.MetricsConfig `yaml:"metrics"`

	// Storage configures the run history database.
	Storage StorageConfig `yaml:"storage"`

	// Actions configures the reference handlers.
	Actions ActionsConfig `yaml:"actions"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "200ms" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// RetryConfig mirrors engine.RetryPolicy in the configuration file.
type RetryConfig struct {
	MaxAttempts       int      `yaml:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff    Duration `yaml:"initial_backoff" validate:"min=0"`
	MaxBackoff        Duration `yaml:"max_backoff" validate:"min=0"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier" validate:"min=1"`
}

// PolicyConfig mirrors engine.ExecutionPolicy plus the policy file directory.
type PolicyConfig struct {
	// RequireConfirmation lists action kinds gated behind confirmation.
	RequireConfirmation []string `yaml:"require_confirmation"`

	// MaxStepTimeout bounds a single dispatch attempt.
	MaxStepTimeout Duration `yaml:"max_step_timeout" validate:"min=0"`

	// MaxPlanTimeout bounds a whole run. Zero disables the bound.
	MaxPlanTimeout Duration `yaml:"max_plan_timeout" validate:"min=0"`

	// PolicyDir holds additional .rego policy files loaded into the gate.
	PolicyDir string `yaml:"policy_dir"`
}

// StorageConfig configures the run history store.
type StorageConfig struct {
	// Enabled controls whether run history is recorded.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// ActionsConfig configures the reference action handlers.
type ActionsConfig struct {
	// NotesDir is where notes and reminders are persisted.
	NotesDir string `yaml:"notes_dir"`

	// SearchRoots are the directories FindFile scans.
	SearchRoots []string `yaml:"search_roots"`
}

// Default returns the built-in configuration.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	retry := engine.DefaultRetryPolicy()
	policy := engine.DefaultExecutionPolicy()

	gated := make([]string, 0, len(policy.RequireConfirmation))
	for kind := range policy.RequireConfirmation {
		gated = append(gated, string(kind))
	}
	sort.Strings(gated)

	return &Config{
		Retry: RetryConfig{
			MaxAttempts:       retry.MaxAttempts,
			InitialBackoff:    Duration(retry.InitialBackoff),
			MaxBackoff:        Duration(retry.MaxBackoff),
			BackoffMultiplier: retry.BackoffMultiplier,
		},
		Policy: PolicyConfig{
			RequireConfirmation: gated,
			MaxStepTimeout:      Duration(policy.MaxStepTimeout),
			MaxPlanTimeout:      Duration(policy.MaxPlanTimeout),
		},
		Logging: tel.Logging,
		Tracing: tel.Tracing,
		Metrics: tel.Metrics,
		Storage: StorageConfig{
			Enabled: true,
			Path:    defaultStatePath("hark.db"),
		},
		Actions: ActionsConfig{},
	}
}

// Load reads the configuration file at path, layered over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural validity, including that every gated kind names
// a known action.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, kind := range c.Policy.RequireConfirmation {
		if err := engine.ActionKind(kind).Validate(); err != nil {
			return fmt.Errorf("invalid gated action kind %q", kind)
		}
	}

	return c.TelemetryConfig().Validate()
}

// RetryPolicy converts the retry section to the engine type.
func (c *Config) RetryPolicy() engine.RetryPolicy {
	return engine.RetryPolicy{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialBackoff:    time.Duration(c.Retry.InitialBackoff),
		MaxBackoff:        time.Duration(c.Retry.MaxBackoff),
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
}

// ExecutionPolicy converts the policy section to the engine type.
func (c *Config) ExecutionPolicy() engine.ExecutionPolicy {
	gated := make(map[engine.ActionKind]bool, len(c.Policy.RequireConfirmation))
	for _, kind := range c.Policy.RequireConfirmation {
		gated[engine.ActionKind(kind)] = true
	}
	return engine.ExecutionPolicy{
		RequireConfirmation: gated,
		MaxStepTimeout:      time.Duration(c.Policy.MaxStepTimeout),
		MaxPlanTimeout:      time.Duration(c.Policy.MaxPlanTimeout),
	}
}

// TelemetryConfig assembles the telemetry configuration.
func (c *Config) TelemetryConfig() *telemetry.Config {
	tel := telemetry.DefaultConfig()
	tel.Logging = c.Logging
	tel.Tracing = c.Tracing
	tel.Metrics = c.Metrics
	return tel
}

// PolicyFiles lists the .rego files in the configured policy directory.
func (c *Config) PolicyFiles() ([]string, error) {
	if c.Policy.PolicyDir == "" {
		return nil, nil
	}
	return filepath.Glob(filepath.Join(c.Policy.PolicyDir, "*.rego"))
}

func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "hark", name)
	}
	return filepath.Join(home, ".hark", name)
}
