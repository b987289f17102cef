package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for plan execution. Its recording
// methods satisfy engine.MetricsRecorder, so it plugs straight into the
// engine configuration.
type Metrics struct {
	config MetricsConfig

	plansStarted   prometheus.Counter
	plansCompleted *prometheus.CounterVec
	planDuration   *prometheus.HistogramVec

	actionsExecuted *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	actionRetries   *prometheus.CounterVec

	compensations *prometheus.CounterVec

	activePlans prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. A disabled configuration yields a
// no-op instance whose recording methods are safe to call.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		plansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_started_total",
			Help:      "Total number of plan executions started",
		}),
		plansCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_completed_total",
				Help:      "Total number of plan executions completed",
			},
			[]string{"status"},
		),
		planDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_duration_seconds",
				Help:      "Duration of plan execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		actionsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_executed_total",
				Help:      "Total number of action step executions",
			},
			[]string{"action", "status"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of action step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),
		actionRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_retries_total",
				Help:      "Total number of action retry attempts",
			},
			[]string{"action"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Total number of compensation dispatches",
			},
			[]string{"action", "status"},
		),
		activePlans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_plans",
			Help:      "Current number of plans executing",
		}),
	}

	registry.MustRegister(
		m.plansStarted,
		m.plansCompleted,
		m.planDuration,
		m.actionsExecuted,
		m.actionDuration,
		m.actionRetries,
		m.compensations,
		m.activePlans,
	)

	return m, nil
}

// RecordPlanStarted increments the started-plans counter.
func (m *Metrics) RecordPlanStarted() {
	if m.plansStarted == nil {
		return
	}
	m.plansStarted.Inc()
	m.activePlans.Inc()
}

// RecordPlanCompleted records a finished plan with its outcome and duration.
func (m *Metrics) RecordPlanCompleted(success bool, duration time.Duration) {
	if m.plansCompleted == nil {
		return
	}
	status := statusLabel(success)
	m.plansCompleted.WithLabelValues(status).Inc()
	m.planDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activePlans.Dec()
}

// RecordActionExecution records one terminal action execution.
func (m *Metrics) RecordActionExecution(action string, success bool, duration time.Duration) {
	if m.actionsExecuted == nil {
		return
	}
	m.actionsExecuted.WithLabelValues(action, statusLabel(success)).Inc()
	m.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordActionRetry records one retry attempt for an action.
func (m *Metrics) RecordActionRetry(action string) {
	if m.actionRetries == nil {
		return
	}
	m.actionRetries.WithLabelValues(action).Inc()
}

// RecordCompensation records one compensation dispatch.
func (m *Metrics) RecordCompensation(action string, success bool) {
	if m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(action, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartServer starts an HTTP server exposing the metrics endpoint. It returns
// immediately; server errors are logged, not fatal.
func (m *Metrics) StartServer(logger zerolog.Logger) {
	if !m.config.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}
