package engine

import (
	"encoding/json"
	"testing"
	"time"
)

func TestActionStepDescribe(t *testing.T) {
	step := ActionStep{
		Index: 0,
		Kind:  ActionLaunchApp,
		Params: map[string]ParamValue{
			"app": StringParam("chrome"),
		},
	}
	if got := step.Describe(); got != "LaunchApp{app=chrome}" {
		t.Errorf("Describe() = %q", got)
	}

	multi := ActionStep{
		Index: 1,
		Kind:  ActionVolumeControl,
		Params: map[string]ParamValue{
			"level": PercentParam(80),
			"mode":  StringParam("set"),
		},
	}
	// Params render in sorted key order.
	if got := multi.Describe(); got != "VolumeControl{level=80%, mode=set}" {
		t.Errorf("Describe() = %q", got)
	}

	bare := ActionStep{Index: 2, Kind: ActionGetTime}
	if got := bare.Describe(); got != "GetTime{}" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestParamValueString(t *testing.T) {
	tests := []struct {
		param ParamValue
		want  string
	}{
		{StringParam("chrome"), "chrome"},
		{PathParam("/tmp/notes"), "/tmp/notes"},
		{PercentParam(55), "55%"},
		{DurationParam(2 * time.Second), "2s"},
		{IntParam(7), "7"},
		{BoolParam(true), "true"},
	}
	for _, tt := range tests {
		if got := tt.param.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParamValueJSON(t *testing.T) {
	original := map[string]ParamValue{
		"app":      StringParam("chrome"),
		"level":    PercentParam(80),
		"duration": DurationParam(1500 * time.Millisecond),
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]ParamValue
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for key, want := range original {
		got, ok := decoded[key]
		if !ok {
			t.Errorf("Missing key %q after round trip", key)
			continue
		}
		if got.String() != want.String() {
			t.Errorf("Param %q = %q, want %q", key, got.String(), want.String())
		}
	}
}

func TestActionKindValidate(t *testing.T) {
	for _, kind := range AllActionKinds {
		if err := kind.Validate(); err != nil {
			t.Errorf("Expected %s to be valid: %v", kind, err)
		}
	}
	if err := ActionKind("MakeCoffee").Validate(); err == nil {
		t.Error("Expected unknown kind to fail validation")
	}
}

func TestDefaultPolicies(t *testing.T) {
	retry := DefaultRetryPolicy()
	if retry.MaxAttempts != 3 {
		t.Errorf("Default MaxAttempts = %d, want 3", retry.MaxAttempts)
	}
	if retry.InitialBackoff != 200*time.Millisecond {
		t.Errorf("Default InitialBackoff = %v", retry.InitialBackoff)
	}
	if retry.MaxBackoff != 5*time.Second {
		t.Errorf("Default MaxBackoff = %v", retry.MaxBackoff)
	}

	policy := DefaultExecutionPolicy()
	if !policy.RequiresConfirmation(ActionSystemControl) {
		t.Error("Expected SystemControl to require confirmation by default")
	}
	if policy.RequiresConfirmation(ActionGetTime) {
		t.Error("Expected GetTime to not require confirmation")
	}
	if policy.MaxStepTimeout != 30*time.Second {
		t.Errorf("Default MaxStepTimeout = %v", policy.MaxStepTimeout)
	}
	if policy.MaxPlanTimeout != 5*time.Minute {
		t.Errorf("Default MaxPlanTimeout = %v", policy.MaxPlanTimeout)
	}
}

func TestPreconditionString(t *testing.T) {
	tests := []struct {
		pre  Precondition
		want string
	}{
		{ConfidenceThreshold(0.8), "confidence >= 0.8"},
		{StepCompleted(2), "step 2 completed"},
		{ResourceAvailable("audio"), `resource "audio" available`},
	}
	for _, tt := range tests {
		if got := tt.pre.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
