package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hark-assistant/hark/pkg/actions"
	"github.com/hark-assistant/hark/pkg/config"
	"github.com/hark-assistant/hark/pkg/engine"
	"github.com/hark-assistant/hark/pkg/policy"
	"github.com/hark-assistant/hark/pkg/stores"
	"github.com/hark-assistant/hark/pkg/telemetry"
)

// runtime holds the assembled execution stack for one command invocation.
type runtime struct {
	cfg       *config.Config
	logger    zerolog.Logger
	engine    *engine.Engine
	registry  *actions.Registry
	gate      *policy.Gate
	store     stores.Store
	publisher *telemetry.EventPublisher
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
}

// newRuntime wires the engine with its dispatcher, gate, telemetry and run
// history store from the loaded configuration.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsAddr
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	telCfg := cfg.TelemetryConfig()
	publisher := telemetry.NewEventPublisher(telCfg.Events)

	metrics, err := telemetry.NewMetrics(telCfg.Metrics)
	if err != nil {
		return nil, err
	}
	if telCfg.Metrics.Enabled {
		metrics.StartServer(logger)
	}

	tracer, err := telemetry.NewTracer(telCfg.Tracing, telCfg.ServiceName, telCfg.ServiceVersion, telCfg.Environment)
	if err != nil {
		return nil, err
	}

	gate, err := policy.NewGate(cfg.ExecutionPolicy(), logger)
	if err != nil {
		return nil, err
	}
	policyFiles, err := cfg.PolicyFiles()
	if err != nil {
		return nil, err
	}
	if len(policyFiles) > 0 {
		if err := gate.LoadPolicyFiles(ctx, policyFiles); err != nil {
			return nil, err
		}
	}

	registry, err := actions.NewDefaultRegistry(actions.DefaultConfig{
		NotesDir:    cfg.Actions.NotesDir,
		SearchRoots: cfg.Actions.SearchRoots,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		gate:      gate,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
	}

	if cfg.Storage.Enabled {
		store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Storage.Path})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate run history store: %w", err)
		}
		stores.NewRecorder(store, logger).Attach(publisher)
		rt.store = store
	}

	eng, err := engine.New(engine.Config{
		Dispatcher: registry,
		Gate:       gate,
		Retry:      cfg.RetryPolicy(),
		Policy:     cfg.ExecutionPolicy(),
		Events:     publisher,
		Metrics:    metrics,
		Tracer:     tracer,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	rt.engine = eng

	return rt, nil
}

// shutdown flushes telemetry and closes the store. Events drain before the
// store closes so the tail of the run is persisted.
func (rt *runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rt.publisher.Shutdown(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("Event publisher shutdown failed")
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("Store close failed")
		}
	}
	if err := rt.tracer.Shutdown(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("Tracer shutdown failed")
	}
}
