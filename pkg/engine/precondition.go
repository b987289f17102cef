package engine

import (
	"fmt"
)

// checkPreconditions evaluates a step's precondition set against the
// execution context. The first unmet condition fails the step fast with a
// fatal (non-retryable) error: a condition that is false now will not become
// true by re-dispatching the same step.
func checkPreconditions(step ActionStep, ectx *ExecutionContext) error {
	for _, pre := range step.Preconditions {
		met, detail := evalPrecondition(pre, ectx)
		if !met {
			return NewFatalError(
				fmt.Sprintf("precondition not met: %s (%s)", pre.String(), detail), nil,
			).WithStep(step.Index, step.Kind)
		}
	}
	return nil
}

// evalPrecondition evaluates a single precondition, returning whether it is
// met and a short detail string for error messages.
func evalPrecondition(pre Precondition, ectx *ExecutionContext) (bool, string) {
	switch pre.Kind {
	case PreconditionConfidence:
		confidence := ectx.Confidence()
		return confidence >= pre.Threshold, fmt.Sprintf("confidence is %g", confidence)

	case PreconditionStepCompleted:
		if ectx.Completed(pre.StepIndex) {
			return true, ""
		}
		return false, fmt.Sprintf("step %d has not completed", pre.StepIndex)

	case PreconditionResource:
		if ectx.ResourceAvailable(pre.Resource) {
			return true, ""
		}
		return false, fmt.Sprintf("resource %q is not available", pre.Resource)

	default:
		return false, fmt.Sprintf("unknown precondition kind %q", pre.Kind)
	}
}
