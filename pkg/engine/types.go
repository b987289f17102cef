package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionKind identifies the capability a step invokes. The set is closed:
// handlers are registered per kind and the planner never emits kinds outside
// this list.
type ActionKind string

const (
	ActionLaunchApp        ActionKind = "LaunchApp"
	ActionCloseApp         ActionKind = "CloseApp"
	ActionFindFile         ActionKind = "FindFile"
	ActionOpenFolder       ActionKind = "OpenFolder"
	ActionSystemControl    ActionKind = "SystemControl"
	ActionVolumeControl    ActionKind = "VolumeControl"
	ActionMediaControl     ActionKind = "MediaControl"
	ActionWindowManagement ActionKind = "WindowManagement"
	ActionSearchWeb        ActionKind = "SearchWeb"
	ActionCreateReminder   ActionKind = "CreateReminder"
	ActionTakeNote         ActionKind = "TakeNote"
	ActionAnswerQuestion   ActionKind = "AnswerQuestion"
	ActionGetTime          ActionKind = "GetTime"
	ActionGetDate          ActionKind = "GetDate"
	ActionWait             ActionKind = "Wait"
)

// AllActionKinds lists every valid action kind in a stable order.
var AllActionKinds = []ActionKind{
	ActionLaunchApp,
	ActionCloseApp,
	ActionFindFile,
	ActionOpenFolder,
	ActionSystemControl,
	ActionVolumeControl,
	ActionMediaControl,
	ActionWindowManagement,
	ActionSearchWeb,
	ActionCreateReminder,
	ActionTakeNote,
	ActionAnswerQuestion,
	ActionGetTime,
	ActionGetDate,
	ActionWait,
}

// Validate checks if the action kind is one of the closed set.
func (k ActionKind) Validate() error {
	for _, known := range AllActionKinds {
		if k == known {
			return nil
		}
	}
	return fmt.Errorf("invalid action kind: %s", k)
}

// ParamKind identifies the semantic type carried by a ParamValue.
type ParamKind string

const (
	ParamString   ParamKind = "string"
	ParamPath     ParamKind = "path"
	ParamPercent  ParamKind = "percent"
	ParamDuration ParamKind = "duration"
	ParamInt      ParamKind = "int"
	ParamBool     ParamKind = "bool"
)

// ParamValue is a tagged union carrying one typed action parameter.
// Only the field matching Kind is meaningful; the constructors below are the
// supported way to build one.
type ParamValue struct {
	Kind     ParamKind
	Str      string
	Percent  float64
	Duration time.Duration
	Int      int64
	Bool     bool
}

// StringParam builds a plain string parameter.
func StringParam(s string) ParamValue {
	return ParamValue{Kind: ParamString, Str: s}
}

// PathParam builds a filesystem path parameter.
func PathParam(p string) ParamValue {
	return ParamValue{Kind: ParamPath, Str: p}
}

// PercentParam builds a percentage parameter (0-100).
func PercentParam(v float64) ParamValue {
	return ParamValue{Kind: ParamPercent, Percent: v}
}

// DurationParam builds a duration parameter.
func DurationParam(d time.Duration) ParamValue {
	return ParamValue{Kind: ParamDuration, Duration: d}
}

// IntParam builds an integer parameter.
func IntParam(i int64) ParamValue {
	return ParamValue{Kind: ParamInt, Int: i}
}

// BoolParam builds a boolean parameter.
func BoolParam(b bool) ParamValue {
	return ParamValue{Kind: ParamBool, Bool: b}
}

// String renders the parameter value for summaries and dry-run output.
func (p ParamValue) String() string {
	switch p.Kind {
	case ParamString, ParamPath:
		return p.Str
	case ParamPercent:
		return fmt.Sprintf("%g%%", p.Percent)
	case ParamDuration:
		return p.Duration.String()
	case ParamInt:
		return fmt.Sprintf("%d", p.Int)
	case ParamBool:
		return fmt.Sprintf("%t", p.Bool)
	default:
		return ""
	}
}

// paramValueJSON is the wire representation of a ParamValue.
type paramValueJSON struct {
	Kind  ParamKind   `json:"kind"`
	Value interface{} `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (p ParamValue) MarshalJSON() ([]byte, error) {
	wire := paramValueJSON{Kind: p.Kind}
	switch p.Kind {
	case ParamString, ParamPath:
		wire.Value = p.Str
	case ParamPercent:
		wire.Value = p.Percent
	case ParamDuration:
		wire.Value = p.Duration.String()
	case ParamInt:
		wire.Value = p.Int
	case ParamBool:
		wire.Value = p.Bool
	default:
		return nil, fmt.Errorf("invalid param kind: %s", p.Kind)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var wire paramValueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	p.Kind = wire.Kind
	switch wire.Kind {
	case ParamString, ParamPath:
		s, ok := wire.Value.(string)
		if !ok {
			return fmt.Errorf("param kind %s requires a string value", wire.Kind)
		}
		p.Str = s
	case ParamPercent:
		f, ok := wire.Value.(float64)
		if !ok {
			return fmt.Errorf("param kind %s requires a numeric value", wire.Kind)
		}
		p.Percent = f
	case ParamDuration:
		s, ok := wire.Value.(string)
		if !ok {
			return fmt.Errorf("param kind %s requires a duration string", wire.Kind)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		p.Duration = d
	case ParamInt:
		f, ok := wire.Value.(float64)
		if !ok {
			return fmt.Errorf("param kind %s requires a numeric value", wire.Kind)
		}
		p.Int = int64(f)
	case ParamBool:
		b, ok := wire.Value.(bool)
		if !ok {
			return fmt.Errorf("param kind %s requires a boolean value", wire.Kind)
		}
		p.Bool = b
	default:
		return fmt.Errorf("invalid param kind: %s", wire.Kind)
	}
	return nil
}

// PreconditionKind identifies the variant of a precondition.
type PreconditionKind string

const (
	// PreconditionConfidence requires the planner's confidence in the plan to
	// meet a threshold.
	PreconditionConfidence PreconditionKind = "confidence_threshold"

	// PreconditionStepCompleted requires an earlier step to have completed
	// successfully.
	PreconditionStepCompleted PreconditionKind = "step_completed"

	// PreconditionResource requires a named resource to be available.
	PreconditionResource PreconditionKind = "resource_available"
)

// Precondition is a declarative check evaluated against the execution context
// immediately before a step dispatches. Exactly one of the variant fields is
// meaningful, selected by Kind.
type Precondition struct {
	Kind      PreconditionKind `json:"kind"`
	Threshold float64          `json:"threshold,omitempty"`
	StepIndex int              `json:"step_index,omitempty"`
	Resource  string           `json:"resource,omitempty"`
}

// ConfidenceThreshold builds a confidence precondition.
func ConfidenceThreshold(threshold float64) Precondition {
	return Precondition{Kind: PreconditionConfidence, Threshold: threshold}
}

// StepCompleted builds a step-completion precondition.
func StepCompleted(stepIndex int) Precondition {
	return Precondition{Kind: PreconditionStepCompleted, StepIndex: stepIndex}
}

// ResourceAvailable builds a resource-availability precondition.
func ResourceAvailable(resource string) Precondition {
	return Precondition{Kind: PreconditionResource, Resource: resource}
}

// String renders the precondition for log and dry-run output.
func (p Precondition) String() string {
	switch p.Kind {
	case PreconditionConfidence:
		return fmt.Sprintf("confidence >= %g", p.Threshold)
	case PreconditionStepCompleted:
		return fmt.Sprintf("step %d completed", p.StepIndex)
	case PreconditionResource:
		return fmt.Sprintf("resource %q available", p.Resource)
	default:
		return string(p.Kind)
	}
}

// ActionStep is one unit of work in a plan.
type ActionStep struct {
	// Index is the step's position in the plan, unique within the plan.
	Index int `json:"index"`

	// Kind selects the capability handler that executes this step.
	Kind ActionKind `json:"kind"`

	// Params are the typed arguments for the handler.
	Params map[string]ParamValue `json:"params,omitempty"`

	// Preconditions are checked against the execution context before dispatch.
	Preconditions []Precondition `json:"preconditions,omitempty"`
}

// Param returns the named parameter, if present.
func (s ActionStep) Param(name string) (ParamValue, bool) {
	v, ok := s.Params[name]
	return v, ok
}

// Describe renders the step as "Kind{key=value, ...}" with keys in sorted
// order, used for dry-run lines and error messages.
func (s ActionStep) Describe() string {
	if len(s.Params) == 0 {
		return fmt.Sprintf("%s{}", s.Kind)
	}

	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, s.Params[k].String()))
	}
	return fmt.Sprintf("%s{%s}", s.Kind, strings.Join(parts, ", "))
}

// TaskPlan is an ordered, possibly-grouped sequence of action steps produced
// by the planner. Steps listed in Groups execute concurrently with the other
// members of their group; all remaining steps execute sequentially in listed
// order. A plan is immutable once built and is consumed exactly once by
// Engine.ExecutePlan.
type TaskPlan struct {
	// ID is an optional caller-assigned identifier. The engine generates a
	// fresh plan ID per run regardless; this one is only echoed in summaries.
	ID string `json:"id,omitempty"`

	// Steps are the plan's steps; Steps[i].Index must equal i.
	Steps []ActionStep `json:"steps"`

	// Groups partitions a subset of step indices into parallel groups. A step
	// belongs to at most one group.
	Groups [][]int `json:"groups,omitempty"`
}

// RetryPolicy bounds retry behavior for a single step dispatch. It is shared
// read-only across all steps of a run.
type RetryPolicy struct {
	// MaxAttempts is the total number of dispatch attempts, including the
	// first one.
	MaxAttempts int `json:"max_attempts"`

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `json:"initial_backoff"`

	// MaxBackoff caps the backoff delay.
	MaxBackoff time.Duration `json:"max_backoff"`

	// BackoffMultiplier is the exponential growth factor between attempts.
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultRetryPolicy returns the retry policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// BackoffFor returns the delay to sleep after the given attempt (1-based):
// min(initial * multiplier^(attempt-1), max).
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	if max := float64(p.MaxBackoff); p.MaxBackoff > 0 && backoff > max {
		backoff = max
	}
	return time.Duration(backoff)
}

// ExecutionPolicy carries the run-wide execution limits and the set of action
// kinds that must never execute without explicit confirmation.
type ExecutionPolicy struct {
	// RequireConfirmation lists action kinds gated behind confirmation.
	RequireConfirmation map[ActionKind]bool `json:"require_confirmation,omitempty"`

	// MaxStepTimeout bounds a single dispatch attempt.
	MaxStepTimeout time.Duration `json:"max_step_timeout"`

	// MaxPlanTimeout bounds the whole run. Zero disables the bound.
	MaxPlanTimeout time.Duration `json:"max_plan_timeout"`
}

// DefaultExecutionPolicy returns the execution policy used when none is
// configured. SystemControl is confirmation-gated by default: it covers
// shutdown, restart and similar operations that must never run silently.
func DefaultExecutionPolicy() ExecutionPolicy {
	return ExecutionPolicy{
		RequireConfirmation: map[ActionKind]bool{
			ActionSystemControl: true,
		},
		MaxStepTimeout: 30 * time.Second,
		MaxPlanTimeout: 5 * time.Minute,
	}
}

// RequiresConfirmation reports whether the kind is confirmation-gated.
func (p ExecutionPolicy) RequiresConfirmation(kind ActionKind) bool {
	return p.RequireConfirmation[kind]
}

// CompensationDescriptor describes how to reverse a previously successful
// step. It is plain data, not a closure: unwinding re-dispatches the inverse
// through the same capability registry that executed the original step, so
// descriptors can be logged and replayed.
type CompensationDescriptor struct {
	// StepIndex is the index of the step being compensated.
	StepIndex int `json:"step_index"`

	// Description is a human-readable summary, e.g. "close app chrome".
	Description string `json:"description"`

	// InverseKind is the action kind that reverses the original effect.
	InverseKind ActionKind `json:"inverse_kind"`

	// InverseParams are the arguments for the inverse dispatch.
	InverseParams map[string]ParamValue `json:"inverse_params,omitempty"`
}
