package engine

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ExecuteOptions carries the per-run inputs supplied by the caller alongside
// the plan itself.
type ExecuteOptions struct {
	// Confidence is the planner's confidence in the plan, consulted by
	// ConfidenceThreshold preconditions. Zero means "not supplied" and is
	// treated as full confidence.
	Confidence float64

	// ConfirmedSteps marks step indices the user has explicitly confirmed.
	ConfirmedSteps map[int]bool

	// ConfirmAll confirms every confirmation-gated step in the plan.
	ConfirmAll bool

	// Resources marks named resources as available, consulted by
	// ResourceAvailable preconditions.
	Resources map[string]bool
}

// ExecutionContext is the per-run state for one ExecutePlan call. It is
// exclusively owned by that call, mutated only by the engine during the run,
// and discarded at run end; the engine itself stays stateless across runs.
type ExecutionContext struct {
	// PlanID is the generated identifier correlating all telemetry of the run.
	PlanID string

	// StartedAt is when the run began.
	StartedAt time.Time

	opts          ExecuteOptions
	compensations *CompensationManager
	cancelled     *atomic.Bool

	mu       sync.Mutex
	outcomes map[int]string
	failures map[int]bool
}

func newExecutionContext(opts ExecuteOptions, cancelled *atomic.Bool) *ExecutionContext {
	return &ExecutionContext{
		PlanID:        uuid.New().String(),
		StartedAt:     time.Now(),
		opts:          opts,
		compensations: NewCompensationManager(),
		cancelled:     cancelled,
		outcomes:      make(map[int]string),
		failures:      make(map[int]bool),
	}
}

// RecordOutcome stores the outcome of a completed step.
func (c *ExecutionContext) RecordOutcome(stepIndex int, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[stepIndex] = outcome
}

// Outcome returns the recorded outcome of a step, if it completed.
func (c *ExecutionContext) Outcome(stepIndex int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outcome, ok := c.outcomes[stepIndex]
	return outcome, ok
}

// Completed reports whether the step completed successfully.
func (c *ExecutionContext) Completed(stepIndex int) bool {
	_, ok := c.Outcome(stepIndex)
	return ok
}

// CompletedCount returns the number of successfully completed steps.
func (c *ExecutionContext) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// RecordFailure marks a step as terminally failed.
func (c *ExecutionContext) RecordFailure(stepIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[stepIndex] = true
}

// FailedCount returns the number of terminally failed steps.
func (c *ExecutionContext) FailedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}

// Summary joins the recorded outcomes in step-index order.
func (c *ExecutionContext) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	indices := make([]int, 0, len(c.outcomes))
	for idx := range c.outcomes {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	parts := make([]string, 0, len(indices))
	for _, idx := range indices {
		parts = append(parts, c.outcomes[idx])
	}
	return strings.Join(parts, "; ")
}

// Confidence returns the planner confidence for this run.
func (c *ExecutionContext) Confidence() float64 {
	if c.opts.Confidence == 0 {
		return 1.0
	}
	return c.opts.Confidence
}

// Confirmed reports whether the step carries a confirmation token.
func (c *ExecutionContext) Confirmed(stepIndex int) bool {
	return c.opts.ConfirmAll || c.opts.ConfirmedSteps[stepIndex]
}

// ResourceAvailable reports whether the named resource was declared available.
func (c *ExecutionContext) ResourceAvailable(name string) bool {
	return c.opts.Resources[name]
}

// Compensations returns the run's compensation stack.
func (c *ExecutionContext) Compensations() *CompensationManager {
	return c.compensations
}

// Cancelled reports whether cancellation has been requested. The flag is
// checked at stage boundaries only; an in-flight dispatch is never preempted.
func (c *ExecutionContext) Cancelled() bool {
	return c.cancelled != nil && c.cancelled.Load()
}
