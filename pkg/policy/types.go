// Package policy implements the confirmation gate as a set of Rego policies
// evaluated with OPA. The gate sits between the engine and the dispatcher:
// every step passes through it before any handler runs.
package policy

import (
	"github.com/hark-assistant/hark/pkg/engine"
)

// Severity indicates how a policy violation is treated.
type Severity string

const (
	// SeverityBlock denies the step outright.
	SeverityBlock Severity = "block"

	// SeverityConfirm denies the step unless the run carries a confirmation
	// token for it.
	SeverityConfirm Severity = "confirm"
)

// Policy is one named Rego policy.
type Policy struct {
	// Name uniquely identifies the policy.
	Name string `json:"name"`

	// Description explains what the policy enforces.
	Description string `json:"description"`

	// Severity selects how violations are treated.
	Severity Severity `json:"severity"`

	// Enabled controls whether the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Rego is the policy source. It must expose a deny set in its package.
	Rego string `json:"rego"`
}

// GateInput is the document passed to Rego evaluation for one step.
type GateInput struct {
	// Action is the step's action kind, e.g. "SystemControl".
	Action string `json:"action"`

	// StepIndex is the step's position in the plan.
	StepIndex int `json:"step_index"`

	// Params are the step's parameters rendered as strings.
	Params map[string]string `json:"params"`

	// Confirmed reports whether the run carries a confirmation token for
	// this step.
	Confirmed bool `json:"confirmed"`
}

func gateInput(step engine.ActionStep, confirmed bool) *GateInput {
	params := make(map[string]string, len(step.Params))
	for name, value := range step.Params {
		params[name] = value.String()
	}
	return &GateInput{
		Action:    string(step.Kind),
		StepIndex: step.Index,
		Params:    params,
		Confirmed: confirmed,
	}
}
