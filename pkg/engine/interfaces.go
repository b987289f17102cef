package engine

import (
	"context"
)

// Dispatcher is the action capability contract: it executes exactly one step
// and returns the outcome or a classified error. One handler is mapped per
// action kind by the implementation; the engine is agnostic to how any
// specific action is performed.
type Dispatcher interface {
	// Dispatch executes the step and returns a human-readable outcome.
	// Errors should be *ActionError values so the retry controller can
	// classify them; anything else is treated as fatal.
	Dispatch(ctx context.Context, step ActionStep) (string, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, step ActionStep) (string, error)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, step ActionStep) (string, error) {
	return f(ctx, step)
}

// GateDecision is the outcome of a policy gate check.
type GateDecision struct {
	// Allowed reports whether the step may dispatch.
	Allowed bool

	// RequiresConfirmation is set when the step was blocked for lack of a
	// confirmation token, as opposed to an outright deny.
	RequiresConfirmation bool

	// Reason explains a block, empty when allowed.
	Reason string
}

// PolicyGate decides, before dispatch, whether a step may execute. The gate is
// fail-closed: a gate error blocks the step.
type PolicyGate interface {
	Check(ctx context.Context, step ActionStep, confirmed bool) (GateDecision, error)
}

// StaticGate is the default PolicyGate: it blocks exactly the action kinds
// listed in ExecutionPolicy.RequireConfirmation when no confirmation token is
// present.
type StaticGate struct {
	policy ExecutionPolicy
}

// NewStaticGate creates a gate over the given execution policy.
func NewStaticGate(policy ExecutionPolicy) *StaticGate {
	return &StaticGate{policy: policy}
}

// Check implements PolicyGate.
func (g *StaticGate) Check(_ context.Context, step ActionStep, confirmed bool) (GateDecision, error) {
	if g.policy.RequiresConfirmation(step.Kind) && !confirmed {
		return GateDecision{
			RequiresConfirmation: true,
			Reason:               "action " + string(step.Kind) + " requires confirmation",
		}, nil
	}
	return GateDecision{Allowed: true}, nil
}
