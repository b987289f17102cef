package engine

import (
	"context"
	"testing"
	"time"
)

func TestBackoffFor(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{5, 3200 * time.Millisecond},
		{6, 5 * time.Second},
		{7, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.BackoffFor(tt.attempt); got != tt.want {
			t.Errorf("BackoffFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetry_RecoverableExhaustsMaxAttempts(t *testing.T) {
	dispatcher := newMockDispatcher()
	dispatcher.errs[0] = NewRecoverableError("mock transient", nil)
	eng, publisher := testEngine(t, dispatcher, nil)

	plan := &TaskPlan{Steps: []ActionStep{{Index: 0, Kind: ActionGetTime}}}

	_, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	if err == nil {
		t.Fatal("Expected failure after retries exhausted")
	}
	if !IsRecoverable(err) {
		t.Errorf("Expected the recoverable error to surface, got %v", err)
	}

	// Exactly MaxAttempts dispatches, with a retry event before each re-try.
	if got := dispatcher.callCount(0); got != 3 {
		t.Errorf("Expected 3 dispatch attempts, got %d", got)
	}
	retries := publisher.byType(EventActionRetry)
	if len(retries) != 2 {
		t.Fatalf("Expected 2 retry events, got %d", len(retries))
	}
	for i, e := range retries {
		if e.Data["attempt"] != i+1 {
			t.Errorf("Retry event %d has attempt %v, want %d", i, e.Data["attempt"], i+1)
		}
	}
}

func TestRetry_RecoverableThenSuccess(t *testing.T) {
	attempts := 0
	flaky := DispatcherFunc(func(ctx context.Context, step ActionStep) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewRecoverableError("mock transient", nil)
		}
		return "finally", nil
	})
	eng, _ := testEngine(t, flaky, nil)

	plan := &TaskPlan{Steps: []ActionStep{{Index: 0, Kind: ActionGetTime}}}

	summary, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	if err != nil {
		t.Fatalf("Expected recovery within budget, got %v", err)
	}
	if summary != "finally" {
		t.Errorf("Unexpected summary: %q", summary)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_FatalNotRetried(t *testing.T) {
	dispatcher := newMockDispatcher()
	dispatcher.errs[0] = NewFatalError("mock fatal", nil)
	eng, publisher := testEngine(t, dispatcher, nil)

	plan := &TaskPlan{Steps: []ActionStep{{Index: 0, Kind: ActionGetTime}}}

	_, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	if err == nil {
		t.Fatal("Expected failure")
	}
	if !IsFatal(err) {
		t.Errorf("Expected fatal error, got %v", err)
	}
	if got := dispatcher.callCount(0); got != 1 {
		t.Errorf("Expected 1 dispatch for fatal error, got %d", got)
	}
	if retries := publisher.byType(EventActionRetry); len(retries) != 0 {
		t.Errorf("Expected no retry events, got %d", len(retries))
	}
}

func TestRetry_StepTimeout(t *testing.T) {
	slow := DispatcherFunc(func(ctx context.Context, step ActionStep) (string, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	eng, _ := testEngine(t, slow, func(cfg *Config) {
		cfg.Policy.MaxStepTimeout = 30 * time.Millisecond
	})

	plan := &TaskPlan{Steps: []ActionStep{{Index: 0, Kind: ActionWait}}}

	start := time.Now()
	_, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected timeout failure")
	}
	if !IsTimeout(err) {
		t.Errorf("Expected timeout error, got %v", err)
	}
	// Timeouts are terminal; no retry budget is spent waiting again.
	if elapsed > 500*time.Millisecond {
		t.Errorf("Timeout took %v, expected prompt termination", elapsed)
	}
}

func TestRetry_PlanDeadlineDuringBackoff(t *testing.T) {
	dispatcher := newMockDispatcher()
	dispatcher.errs[0] = NewRecoverableError("mock transient", nil)
	eng, _ := testEngine(t, dispatcher, func(cfg *Config) {
		cfg.Retry.InitialBackoff = 500 * time.Millisecond
		cfg.Retry.MaxBackoff = 500 * time.Millisecond
		cfg.Policy.MaxPlanTimeout = 40 * time.Millisecond
	})

	plan := &TaskPlan{Steps: []ActionStep{{Index: 0, Kind: ActionGetTime}}}

	// The first attempt fails fast; the plan deadline expires during the
	// backoff sleep. That is a timeout, not a cancellation.
	_, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	if err == nil {
		t.Fatal("Expected failure when the deadline expires during backoff")
	}
	if !IsTimeout(err) {
		t.Errorf("Expected timeout error, got %v", err)
	}
	if got := dispatcher.callCount(0); got != 1 {
		t.Errorf("Expected 1 dispatch before the deadline, got %d", got)
	}
}

func TestRetry_ContextErrorClassification(t *testing.T) {
	plain := DispatcherFunc(func(ctx context.Context, step ActionStep) (string, error) {
		return "", context.DeadlineExceeded
	})
	eng, _ := testEngine(t, plain, nil)

	plan := &TaskPlan{Steps: []ActionStep{{Index: 0, Kind: ActionGetTime}}}

	_, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	if !IsTimeout(err) {
		t.Errorf("Expected deadline errors classified as timeout, got %v", err)
	}

	boom := DispatcherFunc(func(ctx context.Context, step ActionStep) (string, error) {
		return "", context.Canceled
	})
	eng2, _ := testEngine(t, boom, nil)
	_, err = eng2.ExecutePlan(context.Background(), plan, ExecuteOptions{})
	if !IsCancelled(err) {
		t.Errorf("Expected cancellation classified as cancelled, got %v", err)
	}
}

func TestPrecondition_ConfidenceThreshold(t *testing.T) {
	dispatcher := newMockDispatcher()
	eng, _ := testEngine(t, dispatcher, nil)

	plan := &TaskPlan{Steps: []ActionStep{{
		Index:         0,
		Kind:          ActionGetTime,
		Preconditions: []Precondition{ConfidenceThreshold(0.8)},
	}}}

	if _, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{Confidence: 0.5}); err == nil {
		t.Error("Expected low-confidence plan to fail the precondition")
	}
	if len(dispatcher.calls()) != 0 {
		t.Errorf("Expected no dispatch on precondition failure, got %d", len(dispatcher.calls()))
	}

	if _, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{Confidence: 0.9}); err != nil {
		t.Errorf("Expected high-confidence plan to pass, got %v", err)
	}
}

func TestPrecondition_ResourceAvailable(t *testing.T) {
	dispatcher := newMockDispatcher()
	eng, _ := testEngine(t, dispatcher, nil)

	plan := &TaskPlan{Steps: []ActionStep{{
		Index:         0,
		Kind:          ActionMediaControl,
		Preconditions: []Precondition{ResourceAvailable("audio")},
	}}}

	if _, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{}); err == nil {
		t.Error("Expected missing resource to fail the precondition")
	}
	if _, err := eng.ExecutePlan(context.Background(), plan, ExecuteOptions{
		Resources: map[string]bool{"audio": true},
	}); err != nil {
		t.Errorf("Expected available resource to pass, got %v", err)
	}
}
