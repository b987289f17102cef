package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionErrorClassification(t *testing.T) {
	tests := []struct {
		err  *ActionError
		kind ErrorKind
	}{
		{NewRecoverableError("x", nil), ErrorKindRecoverable},
		{NewFatalError("x", nil), ErrorKindFatal},
		{NewTimeoutError("x", nil), ErrorKindTimeout},
		{NewCancelledError("x", nil), ErrorKindCancelled},
		{NewPolicyViolationError("x", nil), ErrorKindPolicyViolation},
	}
	for _, tt := range tests {
		if KindOf(tt.err) != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, KindOf(tt.err), tt.kind)
		}
	}

	if !IsRecoverable(NewRecoverableError("x", nil)) {
		t.Error("IsRecoverable failed")
	}
	if IsRecoverable(NewFatalError("x", nil)) {
		t.Error("Fatal error reported recoverable")
	}
}

func TestKindOf_DefaultsToFatal(t *testing.T) {
	if KindOf(errors.New("plain")) != ErrorKindFatal {
		t.Error("Expected non-ActionError to classify as fatal")
	}
}

func TestActionErrorWrapping(t *testing.T) {
	cause := errors.New("exec: not found")
	err := NewFatalError("launch failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	var actionErr *ActionError
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.As(wrapped, &actionErr) {
		t.Fatal("Expected errors.As to unwrap to ActionError")
	}
	if actionErr.Kind != ErrorKindFatal {
		t.Errorf("Unexpected kind: %s", actionErr.Kind)
	}
}

func TestActionErrorMessage(t *testing.T) {
	err := NewTimeoutError("step exceeded timeout", nil).
		WithStep(2, ActionLaunchApp)

	msg := err.Error()
	if !strings.Contains(msg, "step 2") {
		t.Errorf("Expected step index in message: %q", msg)
	}
	if !strings.Contains(msg, "LaunchApp") {
		t.Errorf("Expected action kind in message: %q", msg)
	}
	if !strings.Contains(msg, "timeout") {
		t.Errorf("Expected kind tag in message: %q", msg)
	}
}

func TestActionErrorIs_MatchesByKind(t *testing.T) {
	a := NewCancelledError("during backoff", nil)
	b := NewCancelledError("between stages", nil)
	if !errors.Is(a, b) {
		t.Error("Expected same-kind ActionErrors to match with errors.Is")
	}
	if errors.Is(a, NewFatalError("x", nil)) {
		t.Error("Expected different kinds to not match")
	}
}
