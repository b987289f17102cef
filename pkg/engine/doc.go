// Package engine executes multi-step task plans for the hark assistant.
//
// # Overview
//
// An external planner turns an utterance into a TaskPlan: an ordered sequence
// of ActionSteps, optionally partitioned into parallel groups. The engine
// consumes the plan exactly once and drives it to completion:
//
//  1. Validate - structural consistency (non-empty, coherent groups and
//     step-completion dependencies)
//  2. Gate - confirmation-gated action kinds never execute silently
//  3. Dispatch - each step runs through the injected Dispatcher under a
//     bounded timeout, with exponential-backoff retry for recoverable errors
//  4. Compensate - every success pushes a reversal descriptor; the stack
//     unwinds LIFO, best-effort, when the plan fails or is cancelled
//  5. Report - lifecycle events and metrics flow to injected sinks, and the
//     caller receives the joined step outcomes or the first terminal error
//
// # Execution model
//
// Stages (standalone steps and parallel groups) execute strictly in plan
// order. Within a group, members run concurrently and all settle before the
// group is decided; a failing sibling never cancels in-flight work, and the
// lowest-index failure is the one surfaced. Cancellation is cooperative: the
// signal is observed at stage boundaries only.
//
// # Collaborators
//
// The Dispatcher, PolicyGate, EventPublisher, MetricsRecorder and Tracer are
// injected at construction, keeping the engine unit-testable with recording
// implementations. ExecutionContext is exclusively owned by a single
// ExecutePlan call; the policies are immutable and shared read-only.
package engine
