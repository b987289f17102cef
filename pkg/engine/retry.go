package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// retrier wraps a single step dispatch with precondition checks, policy
// gating, a per-attempt timeout, and bounded exponential-backoff retry for
// recoverable failures.
type retrier struct {
	dispatcher Dispatcher
	gate       PolicyGate
	retry      RetryPolicy
	policy     ExecutionPolicy
	engine     *Engine
	logger     zerolog.Logger
}

// run executes one step to a terminal outcome. On success the outcome is
// recorded in the context and a compensation descriptor is pushed if the
// action kind has a known inverse. Timeout, cancellation, fatal and
// policy-violation errors return immediately; recoverable errors are retried
// up to MaxAttempts with backoff min(initial*multiplier^(attempt-1), max).
func (r *retrier) run(ctx context.Context, ectx *ExecutionContext, step ActionStep) (string, error) {
	logger := r.logger.With().
		Int("step_index", step.Index).
		Str("action", string(step.Kind)).
		Logger()

	attempt := 1
	started := false

	for {
		if err := checkPreconditions(step, ectx); err != nil {
			ectx.RecordFailure(step.Index)
			return "", err
		}

		decision, err := r.gate.Check(ctx, step, ectx.Confirmed(step.Index))
		if err != nil {
			// Fail closed: a broken gate never lets a step through.
			ectx.RecordFailure(step.Index)
			return "", NewPolicyViolationError("policy gate evaluation failed", err).
				WithStep(step.Index, step.Kind)
		}
		if !decision.Allowed {
			r.engine.publishEvent(ctx, Event{
				Type:      EventPolicyGateTriggered,
				PlanID:    ectx.PlanID,
				StepIndex: step.Index,
				Action:    step.Kind,
				Message:   decision.Reason,
				Level:     EventLevelWarning,
				Data: map[string]interface{}{
					"requires_confirmation": decision.RequiresConfirmation,
					"reason":                decision.Reason,
				},
			})
			ectx.RecordFailure(step.Index)
			return "", NewPolicyViolationError(decision.Reason, nil).
				WithStep(step.Index, step.Kind)
		}

		if !started {
			started = true
			r.engine.publishEvent(ctx, Event{
				Type:      EventActionStarted,
				PlanID:    ectx.PlanID,
				StepIndex: step.Index,
				Action:    step.Kind,
				Message:   fmt.Sprintf("Executing %s", step.Describe()),
				Level:     EventLevelInfo,
			})
		}

		startTime := time.Now()
		outcome, err := r.dispatch(ctx, step)
		duration := time.Since(startTime)

		if err == nil {
			ectx.RecordOutcome(step.Index, outcome)
			if d, ok := inverseForStep(step); ok {
				ectx.Compensations().Push(d)
			}
			r.recordCompleted(ctx, ectx, step, true, duration, "")
			logger.Debug().Dur("duration", duration).Msg("Step succeeded")
			return outcome, nil
		}

		err = r.classify(ctx, err).WithStep(step.Index, step.Kind)

		if IsRecoverable(err) && attempt < r.retry.MaxAttempts {
			backoff := r.retry.BackoffFor(attempt)
			r.engine.publishEvent(ctx, Event{
				Type:      EventActionRetry,
				PlanID:    ectx.PlanID,
				StepIndex: step.Index,
				Action:    step.Kind,
				Message:   fmt.Sprintf("Retrying after failure (attempt %d/%d)", attempt, r.retry.MaxAttempts),
				Level:     EventLevelWarning,
				Data: map[string]interface{}{
					"attempt":      attempt,
					"max_attempts": r.retry.MaxAttempts,
					"error":        err.Error(),
					"backoff":      backoff.String(),
				},
			})
			if r.engine.metrics != nil {
				r.engine.metrics.RecordActionRetry(string(step.Kind))
			}
			logger.Warn().Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Recoverable failure, backing off")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				// Same mapping as classify: a deadline expiry is a timeout, a
				// cancelled parent is a cancellation.
				var termErr *ActionError
				if ctx.Err() == context.DeadlineExceeded {
					termErr = NewTimeoutError("plan timeout exceeded", ctx.Err())
				} else {
					termErr = NewCancelledError("cancelled during backoff", ctx.Err())
				}
				termErr = termErr.WithStep(step.Index, step.Kind)
				ectx.RecordFailure(step.Index)
				r.recordCompleted(ctx, ectx, step, false, duration, termErr.Error())
				return "", termErr
			}

			attempt++
			continue
		}

		ectx.RecordFailure(step.Index)
		r.recordCompleted(ctx, ectx, step, false, duration, err.Error())
		logger.Error().Err(err).Int("attempt", attempt).Msg("Step failed")
		return "", err
	}
}

// dispatch runs a single attempt under the per-step timeout.
func (r *retrier) dispatch(ctx context.Context, step ActionStep) (string, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if r.policy.MaxStepTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.MaxStepTimeout)
		defer cancel()
	}

	spanCtx, end := r.engine.startSpan(attemptCtx, "step.dispatch", map[string]string{
		"action": string(step.Kind),
	})
	outcome, err := r.dispatcher.Dispatch(spanCtx, step)
	end(err)
	return outcome, err
}

// classify normalizes a dispatch error into an ActionError. Context errors
// from the per-attempt timeout map to the timeout kind; cancellation of the
// parent context maps to the cancelled kind.
func (r *retrier) classify(ctx context.Context, err error) *ActionError {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() == context.DeadlineExceeded {
			return NewTimeoutError("plan timeout exceeded", err)
		}
		return NewTimeoutError(fmt.Sprintf("step exceeded timeout of %s", r.policy.MaxStepTimeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return NewCancelledError("dispatch cancelled", err)
	}
	return NewFatalError("dispatch failed", err)
}

func (r *retrier) recordCompleted(ctx context.Context, ectx *ExecutionContext, step ActionStep, success bool, duration time.Duration, errMsg string) {
	if r.engine.metrics != nil {
		r.engine.metrics.RecordActionExecution(string(step.Kind), success, duration)
	}

	message := fmt.Sprintf("Completed %s", step.Describe())
	level := EventLevelInfo
	data := map[string]interface{}{
		"success":  success,
		"duration": duration.Seconds(),
	}
	if !success {
		message = fmt.Sprintf("Failed %s", step.Describe())
		level = EventLevelError
		data["error"] = errMsg
	}

	r.engine.publishEvent(ctx, Event{
		Type:      EventActionCompleted,
		PlanID:    ectx.PlanID,
		StepIndex: step.Index,
		Action:    step.Kind,
		Message:   message,
		Level:     level,
		Data:      data,
	})
}
