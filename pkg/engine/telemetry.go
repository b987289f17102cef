package engine

import (
	"context"
	"time"
)

// EventType identifies a plan or step lifecycle event.
type EventType string

const (
	// EventPlanStarted fires once when a run begins.
	EventPlanStarted EventType = "plan.started"

	// EventPlanCompleted fires once when a run ends, success or not.
	EventPlanCompleted EventType = "plan.completed"

	// EventActionStarted fires when a step passes its gates and dispatches.
	EventActionStarted EventType = "action.started"

	// EventActionCompleted fires when a step settles, success or not.
	EventActionCompleted EventType = "action.completed"

	// EventActionRetry fires before each backoff sleep.
	EventActionRetry EventType = "action.retry"

	// EventPolicyGateTriggered fires when a confirmation-gated step is blocked.
	EventPolicyGateTriggered EventType = "policy.gate_triggered"

	// EventCompensation fires for each compensation dispatch during unwind.
	EventCompensation EventType = "compensation.dispatched"
)

// Event is one telemetry event emitted by the engine. Every event carries the
// plan ID for correlation; StepIndex is -1 for plan-level events.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	PlanID    string                 `json:"plan_id"`
	StepIndex int                    `json:"step_index"`
	Action    ActionKind             `json:"action,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventPublisher receives engine lifecycle events. Implementations must be
// safe for concurrent publish from multiple group members; the engine takes no
// lock around the sink beyond what the sink provides.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// MetricsRecorder receives engine execution metrics. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	RecordPlanStarted()
	RecordPlanCompleted(success bool, duration time.Duration)
	RecordActionExecution(action string, success bool, duration time.Duration)
	RecordActionRetry(action string)
	RecordCompensation(action string, success bool)
}

// Tracer starts spans around plan and step execution. The returned end
// function records the terminal error, if any, and closes the span.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(err error))
}

// publishEvent forwards an event to the configured publisher, filling in the
// timestamp. Safe to call with a nil publisher.
func (e *Engine) publishEvent(ctx context.Context, event Event) {
	if e.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.events.Publish(ctx, event)
}

// startSpan opens a span through the configured tracer. Safe to call with a
// nil tracer; the returned end function is always non-nil.
func (e *Engine) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	if e.tracer == nil {
		return ctx, func(error) {}
	}
	return e.tracer.StartSpan(ctx, name, attrs)
}
