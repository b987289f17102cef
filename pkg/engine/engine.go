package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Engine drives a TaskPlan to completion. It is configured once with immutable
// policies and injected collaborators, holds no state between runs, and is
// reusable across sequential plan executions. At most one plan may be in
// flight per instance.
type Engine struct {
	dispatcher Dispatcher
	gate       PolicyGate
	retry      RetryPolicy
	policy     ExecutionPolicy
	events     EventPublisher
	metrics    MetricsRecorder
	tracer     Tracer
	logger     zerolog.Logger

	mu        sync.Mutex
	running   bool
	cancelled *atomic.Bool
}

// Config wires an Engine. Dispatcher is required; everything else has a
// sensible default or degrades to a no-op.
type Config struct {
	// Dispatcher executes individual steps. Required.
	Dispatcher Dispatcher

	// Gate decides pre-dispatch policy. Defaults to a StaticGate over Policy.
	Gate PolicyGate

	// Retry is the per-step retry policy. Zero value selects the default.
	Retry RetryPolicy

	// Policy is the execution policy. Zero value selects the default.
	Policy ExecutionPolicy

	// Events receives lifecycle events. Optional.
	Events EventPublisher

	// Metrics receives execution metrics. Optional.
	Metrics MetricsRecorder

	// Tracer opens spans around plan and step execution. Optional.
	Tracer Tracer

	// Logger is the structured logger. Defaults to a disabled logger.
	Logger zerolog.Logger
}

// New creates an engine from the given configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.Dispatcher == nil {
		return nil, NewFatalError("engine requires a dispatcher", nil)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Policy.MaxStepTimeout <= 0 {
		cfg.Policy = DefaultExecutionPolicy()
	}
	if cfg.Gate == nil {
		cfg.Gate = NewStaticGate(cfg.Policy)
	}

	return &Engine{
		dispatcher: cfg.Dispatcher,
		gate:       cfg.Gate,
		retry:      cfg.Retry,
		policy:     cfg.Policy,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		logger:     cfg.Logger.With().Str("component", "engine").Logger(),
	}, nil
}

// ExecutePlan validates the plan and drives it to completion: stages execute
// in listed order, parallel groups run concurrently, every success pushes its
// compensation descriptor, and the first terminal failure stops further
// scheduling, unwinds the compensation stack, and surfaces as the returned
// error. On full success the joined step outcomes are returned in plan order.
func (e *Engine) ExecutePlan(ctx context.Context, plan *TaskPlan, opts ExecuteOptions) (string, error) {
	if err := plan.Validate(); err != nil {
		return "", err
	}

	cancelled, err := e.acquire()
	if err != nil {
		return "", err
	}
	defer e.release()

	if e.policy.MaxPlanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.policy.MaxPlanTimeout)
		defer cancel()
	}

	ectx := newExecutionContext(opts, cancelled)
	logger := e.logger.With().Str("plan_id", ectx.PlanID).Logger()

	ctx, endSpan := e.startSpan(ctx, "plan.execute", map[string]string{
		"plan_id": ectx.PlanID,
	})

	if e.metrics != nil {
		e.metrics.RecordPlanStarted()
	}
	e.publishEvent(ctx, Event{
		Type:      EventPlanStarted,
		PlanID:    ectx.PlanID,
		StepIndex: -1,
		Message:   fmt.Sprintf("Plan started with %d steps in %d groups", len(plan.Steps), plan.GroupCount()),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"step_count":  len(plan.Steps),
			"group_count": plan.GroupCount(),
		},
	})
	logger.Info().
		Int("step_count", len(plan.Steps)).
		Int("group_count", plan.GroupCount()).
		Msg("Executing plan")

	scheduler := &groupScheduler{retrier: &retrier{
		dispatcher: e.dispatcher,
		gate:       e.gate,
		retry:      e.retry,
		policy:     e.policy,
		engine:     e,
		logger:     logger,
	}}

	var failure error
	for _, st := range plan.stages() {
		// Cancellation is cooperative: observed here, at the boundary between
		// stages, never by aborting an in-flight dispatch.
		if ectx.Cancelled() {
			failure = NewCancelledError("plan cancelled", nil)
			break
		}

		steps := make([]ActionStep, len(st.steps))
		for i, idx := range st.steps {
			steps[i] = plan.Steps[idx]
		}

		if err := scheduler.runStage(ctx, ectx, steps); err != nil {
			failure = err
			break
		}
	}

	duration := time.Since(ectx.StartedAt)
	completed := ectx.CompletedCount()
	failed := ectx.FailedCount()

	if failure != nil {
		logger.Warn().Err(failure).
			Int("steps_completed", completed).
			Msg("Plan failed, unwinding compensations")

		// The unwind runs detached from the plan deadline: when the timeout
		// itself caused the failure, compensation dispatches still get a live
		// context.
		unwindCtx := context.WithoutCancel(ctx)
		ectx.Compensations().Unwind(unwindCtx, e.dispatcher, logger, e.metrics, func(event Event) {
			event.PlanID = ectx.PlanID
			e.publishEvent(unwindCtx, event)
		})

		reason := "failed"
		if IsCancelled(failure) {
			reason = "cancelled"
		}
		e.finishPlan(ctx, ectx, false, duration, completed, failed, reason)
		endSpan(failure)
		return "", failure
	}

	summary := ectx.Summary()
	e.finishPlan(ctx, ectx, true, duration, completed, 0, "")
	endSpan(nil)
	logger.Info().Dur("duration", duration).Msg("Plan completed")
	return summary, nil
}

// PreviewPlan performs the same traversal and policy/precondition reasoning
// as ExecutePlan but never dispatches an action: zero side effects is a hard
// contract. It returns one descriptive line per step, in plan order.
func (e *Engine) PreviewPlan(ctx context.Context, plan *TaskPlan, opts ExecuteOptions) string {
	if err := plan.Validate(); err != nil {
		return fmt.Sprintf("[DRY-RUN] invalid plan: %v", err)
	}

	ectx := newExecutionContext(opts, nil)

	// Traverse in stage order but emit in plan order.
	lines := make([]string, len(plan.Steps))
	for _, st := range plan.stages() {
		for _, idx := range st.steps {
			step := plan.Steps[idx]
			line := fmt.Sprintf("[DRY-RUN] would execute %s", step.Describe())

			if st.parallel {
				line += " (parallel)"
			}
			// The injected gate decides, so .rego-gated steps annotate the
			// same way statically gated ones do. Fail closed, like dispatch.
			decision, err := e.gate.Check(ctx, step, ectx.Confirmed(step.Index))
			switch {
			case err != nil:
				line += " (blocked: policy gate evaluation failed)"
			case decision.RequiresConfirmation && !decision.Allowed:
				line += " (requires confirmation)"
			case !decision.Allowed:
				line += fmt.Sprintf(" (blocked: %s)", decision.Reason)
			}
			for _, pre := range step.Preconditions {
				if met, _ := evalPrecondition(pre, ectx); !met {
					// StepCompleted preconditions are unmet by construction in
					// a dry run; report them as pending, not failing.
					if pre.Kind == PreconditionStepCompleted {
						line += fmt.Sprintf(" (after step %d)", pre.StepIndex)
					} else {
						line += fmt.Sprintf(" (blocked: %s)", pre.String())
					}
				}
			}

			lines[idx] = line
		}
	}
	return strings.Join(lines, "\n")
}

// Cancel requests cooperative cancellation of the in-flight plan, if any. The
// signal is observed at stage boundaries: no further step or group starts,
// already-dispatched work settles, and the compensation stack unwinds. It is
// a no-op when no plan is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.cancelled != nil {
		e.cancelled.Store(true)
	}
}

// acquire marks the engine as running a plan, enforcing one in-flight plan per
// instance, and returns the fresh cancellation flag for the run.
func (e *Engine) acquire() (*atomic.Bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, NewFatalError("another plan is already executing", nil)
	}
	e.running = true
	e.cancelled = &atomic.Bool{}
	return e.cancelled, nil
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.cancelled = nil
}

func (e *Engine) finishPlan(ctx context.Context, ectx *ExecutionContext, success bool, duration time.Duration, completed, failed int, reason string) {
	if e.metrics != nil {
		e.metrics.RecordPlanCompleted(success, duration)
	}

	message := "Plan completed successfully"
	level := EventLevelInfo
	if !success {
		message = fmt.Sprintf("Plan %s", reason)
		level = EventLevelError
	}

	data := map[string]interface{}{
		"success":         success,
		"duration":        duration.Seconds(),
		"steps_completed": completed,
		"steps_failed":    failed,
	}
	if reason != "" {
		data["reason"] = reason
	}
	if success {
		data["summary"] = ectx.Summary()
	}

	e.publishEvent(ctx, Event{
		Type:      EventPlanCompleted,
		PlanID:    ectx.PlanID,
		StepIndex: -1,
		Message:   message,
		Level:     level,
		Data:      data,
	})
}
