package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// CompensationManager is the LIFO stack of reversal descriptors for one run.
// Descriptors are pushed only when a step succeeds and popped in reverse order
// during unwind. Safe for concurrent pushes from parallel group members.
type CompensationManager struct {
	mu    sync.Mutex
	stack []CompensationDescriptor
}

// NewCompensationManager creates an empty compensation stack.
func NewCompensationManager() *CompensationManager {
	return &CompensationManager{}
}

// Push records a reversal descriptor for a step that just succeeded.
func (m *CompensationManager) Push(d CompensationDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, d)
}

// Len returns the number of pending descriptors.
func (m *CompensationManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Descriptors returns a copy of the stack in push order.
func (m *CompensationManager) Descriptors() []CompensationDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompensationDescriptor(nil), m.stack...)
}

// Unwind pops and dispatches every descriptor's inverse in LIFO order,
// best-effort: a compensation failure is logged and skipped, never escalated.
// The stack is empty when Unwind returns. publish may be nil.
func (m *CompensationManager) Unwind(ctx context.Context, dispatcher Dispatcher, logger zerolog.Logger, metrics MetricsRecorder, publish func(Event)) {
	m.mu.Lock()
	stack := m.stack
	m.stack = nil
	m.mu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		d := stack[i]
		step := ActionStep{
			Index:  d.StepIndex,
			Kind:   d.InverseKind,
			Params: d.InverseParams,
		}

		logger.Info().
			Int("step_index", d.StepIndex).
			Str("inverse_action", string(d.InverseKind)).
			Msgf("Compensating: %s", d.Description)

		_, err := dispatcher.Dispatch(ctx, step)
		if metrics != nil {
			metrics.RecordCompensation(string(d.InverseKind), err == nil)
		}
		if publish != nil {
			level := EventLevelInfo
			data := map[string]interface{}{"success": err == nil}
			if err != nil {
				level = EventLevelWarning
				data["error"] = err.Error()
			}
			publish(Event{
				Type:      EventCompensation,
				StepIndex: d.StepIndex,
				Action:    d.InverseKind,
				Message:   fmt.Sprintf("Compensating: %s", d.Description),
				Level:     level,
				Data:      data,
			})
		}
		if err != nil {
			logger.Warn().Err(err).
				Int("step_index", d.StepIndex).
				Str("inverse_action", string(d.InverseKind)).
				Msg("Compensation failed, skipping")
		}
	}
}

// inverseForStep returns the compensation descriptor for a step that just
// succeeded, if its action kind has a known inverse. Only effects that can be
// cleanly reversed by re-dispatching another capability are covered; the rest
// (notes, searches, volume changes without a recorded prior level) have no
// inverse and are left in place on unwind.
func inverseForStep(step ActionStep) (CompensationDescriptor, bool) {
	switch step.Kind {
	case ActionLaunchApp:
		app, ok := step.Param("app")
		if !ok {
			return CompensationDescriptor{}, false
		}
		return CompensationDescriptor{
			StepIndex:     step.Index,
			Description:   fmt.Sprintf("close app %s", app.String()),
			InverseKind:   ActionCloseApp,
			InverseParams: map[string]ParamValue{"app": app},
		}, true

	case ActionCloseApp:
		app, ok := step.Param("app")
		if !ok {
			return CompensationDescriptor{}, false
		}
		return CompensationDescriptor{
			StepIndex:     step.Index,
			Description:   fmt.Sprintf("relaunch app %s", app.String()),
			InverseKind:   ActionLaunchApp,
			InverseParams: map[string]ParamValue{"app": app},
		}, true

	default:
		return CompensationDescriptor{}, false
	}
}
