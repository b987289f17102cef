package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hark-assistant/hark/pkg/engine"
)

// ConfirmationPolicy generates the Rego policy enforcing the execution
// policy's confirmation-gated action kinds. A gated step is denied unless the
// run carries a confirmation token for it.
func ConfirmationPolicy(execPolicy engine.ExecutionPolicy) Policy {
	kinds := make([]string, 0, len(execPolicy.RequireConfirmation))
	for kind, required := range execPolicy.RequireConfirmation {
		if required {
			kinds = append(kinds, fmt.Sprintf("%q", string(kind)))
		}
	}
	sort.Strings(kinds)

	rego := fmt.Sprintf(`package hark.gate.confirmation

import rego.v1

gated_actions := {%s}

deny contains violation if {
	input.action in gated_actions
	not input.confirmed
	violation := {
		"message": sprintf("%%s requires explicit confirmation", [input.action]),
		"requires_confirmation": true,
	}
}
`, strings.Join(kinds, ", "))

	return Policy{
		Name:        "confirmation-gate",
		Description: "Denies confirmation-gated actions that lack a confirmation token",
		Severity:    SeverityConfirm,
		Enabled:     true,
		Rego:        rego,
	}
}

// DestructiveParamsPolicy blocks system operations outside the known safe
// set, regardless of confirmation. A planner emitting an unknown operation is
// misbehaving, and confirmation cannot fix that.
func DestructiveParamsPolicy() Policy {
	return Policy{
		Name:        "system-op-allowlist",
		Description: "Blocks SystemControl operations outside the supported set",
		Severity:    SeverityBlock,
		Enabled:     true,
		Rego: `package hark.gate.sysops

import rego.v1

allowed_ops := {"shutdown", "restart", "sleep", "lock"}

deny contains violation if {
	input.action == "SystemControl"
	op := input.params.op
	not op in allowed_ops
	violation := {
		"message": sprintf("system operation %q is not permitted", [op]),
		"requires_confirmation": false,
	}
}
`,
	}
}

// BuiltinPolicies returns the policies compiled into every gate.
func BuiltinPolicies(execPolicy engine.ExecutionPolicy) []Policy {
	return []Policy{
		ConfirmationPolicy(execPolicy),
		DestructiveParamsPolicy(),
	}
}
