package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an action error for retry and propagation logic.
// Recoverability is a property of the error kind, never of the action.
type ErrorKind string

const (
	// ErrorKindRecoverable indicates a transient failure eligible for retry,
	// e.g. a process-spawn race.
	ErrorKindRecoverable ErrorKind = "recoverable"

	// ErrorKindFatal indicates a non-recoverable failure: invalid or missing
	// parameters, unsupported capability. Never retried.
	ErrorKindFatal ErrorKind = "fatal"

	// ErrorKindTimeout indicates the step exceeded its bound. Never retried.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindCancelled indicates cancellation was observed. Never retried.
	ErrorKindCancelled ErrorKind = "cancelled"

	// ErrorKindPolicyViolation indicates confirmation was required but absent.
	// Never retried.
	ErrorKindPolicyViolation ErrorKind = "policy_violation"
)

// ActionError is a classified error raised while executing a step. The step
// context fields are filled in by the engine before the error surfaces to the
// caller, so a failed run always identifies the failing step and action kind.
type ActionError struct {
	// Kind is the error classification for retry logic.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// StepIndex is the index of the failing step, or -1 when not applicable.
	StepIndex int `json:"step_index"`

	// Action is the action kind of the failing step, if applicable.
	Action ActionKind `json:"action,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	if e.StepIndex >= 0 && e.Action != "" {
		return fmt.Sprintf("[%s] step %d (%s): %s", e.Kind, e.StepIndex, e.Action, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *ActionError) Is(target error) bool {
	t, ok := target.(*ActionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithStep adds step context to the error and returns it.
func (e *ActionError) WithStep(index int, action ActionKind) *ActionError {
	e.StepIndex = index
	e.Action = action
	return e
}

func newActionError(kind ErrorKind, message string, err error) *ActionError {
	return &ActionError{Kind: kind, Message: message, StepIndex: -1, Err: err}
}

// NewRecoverableError creates a new recoverable error.
func NewRecoverableError(message string, err error) *ActionError {
	return newActionError(ErrorKindRecoverable, message, err)
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, err error) *ActionError {
	return newActionError(ErrorKindFatal, message, err)
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *ActionError {
	return newActionError(ErrorKindTimeout, message, err)
}

// NewCancelledError creates a new cancellation error.
func NewCancelledError(message string, err error) *ActionError {
	return newActionError(ErrorKindCancelled, message, err)
}

// NewPolicyViolationError creates a new policy violation error.
func NewPolicyViolationError(message string, err error) *ActionError {
	return newActionError(ErrorKindPolicyViolation, message, err)
}

// KindOf returns the classification of err, defaulting to fatal for errors
// that are not ActionErrors.
func KindOf(err error) ErrorKind {
	var e *ActionError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindFatal
}

// IsRecoverable returns true if the error is eligible for retry.
func IsRecoverable(err error) bool {
	return KindOf(err) == ErrorKindRecoverable
}

// IsFatal returns true if the error is classified as fatal.
func IsFatal(err error) bool {
	return KindOf(err) == ErrorKindFatal
}

// IsTimeout returns true if the error is classified as a timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrorKindTimeout
}

// IsCancelled returns true if the error is classified as a cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == ErrorKindCancelled
}

// IsPolicyViolation returns true if the error is a policy violation.
func IsPolicyViolation(err error) bool {
	return KindOf(err) == ErrorKindPolicyViolation
}
