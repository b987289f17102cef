package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/hark-assistant/hark/pkg/engine"
)

// Gate evaluates Rego policies before every step dispatch. It implements
// engine.PolicyGate. Evaluation errors propagate to the engine, which fails
// closed: a step never executes on a broken gate.
type Gate struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewGate creates a gate with the builtin policies compiled for the given
// execution policy.
func NewGate(execPolicy engine.ExecutionPolicy, logger zerolog.Logger) (*Gate, error) {
	g := &Gate{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-gate").Logger(),
	}

	for _, p := range BuiltinPolicies(execPolicy) {
		if err := g.compile(context.Background(), p); err != nil {
			return nil, fmt.Errorf("failed to compile builtin policy %s: %w", p.Name, err)
		}
	}
	return g, nil
}

// Check implements engine.PolicyGate: it evaluates every enabled policy's
// deny set against the step and returns the first violation found.
func (g *Gate) Check(ctx context.Context, step engine.ActionStep, confirmed bool) (engine.GateDecision, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	input := gateInput(step, confirmed)

	for _, cp := range g.policies {
		if !cp.policy.Enabled {
			continue
		}

		results, err := cp.query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return engine.GateDecision{}, fmt.Errorf("policy %s evaluation failed: %w", cp.policy.Name, err)
		}

		for _, result := range results {
			for _, expr := range result.Expressions {
				denySet, ok := expr.Value.([]interface{})
				if !ok {
					continue
				}
				for _, d := range denySet {
					reason, requiresConfirmation := parseViolation(d)
					g.logger.Debug().
						Str("policy", cp.policy.Name).
						Int("step_index", step.Index).
						Str("action", string(step.Kind)).
						Str("reason", reason).
						Msg("Policy denied step")
					return engine.GateDecision{
						Allowed:              false,
						RequiresConfirmation: requiresConfirmation,
						Reason:               reason,
					}, nil
				}
			}
		}
	}

	return engine.GateDecision{Allowed: true}, nil
}

// LoadPolicyFiles compiles additional .rego policy files into the gate.
// Each file becomes one policy named after its base name; every policy must
// expose a deny set.
func (g *Gate) LoadPolicyFiles(ctx context.Context, paths []string) error {
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p := Policy{
			Name:     name,
			Severity: SeverityBlock,
			Enabled:  true,
			Rego:     string(source),
		}

		g.mu.Lock()
		err = g.compile(ctx, p)
		g.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", name, err)
		}

		g.logger.Info().Str("policy", name).Str("path", path).Msg("Policy loaded")
	}
	return nil
}

// Policies returns the loaded policies sorted by name.
func (g *Gate) Policies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Policy, 0, len(g.policies))
	for _, cp := range g.policies {
		out = append(out, cp.policy)
	}
	return out
}

// compile prepares the policy's deny query for reuse. Caller holds the lock
// during reload; during construction no lock is needed.
func (g *Gate) compile(ctx context.Context, p Policy) error {
	pkg := extractPackageName(p.Rego)
	query := fmt.Sprintf("data.%s.deny", pkg)

	r := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query(query),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return err
	}

	g.policies[p.Name] = &compiledPolicy{policy: p, query: prepared}
	return nil
}

// extractPackageName extracts the package path from Rego source.
func extractPackageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "hark.gate"
}

// parseViolation extracts the message and confirmation flag from a deny
// result, which is either a bare string or an object.
func parseViolation(result interface{}) (string, bool) {
	switch v := result.(type) {
	case string:
		return v, false
	case map[string]interface{}:
		reason, _ := v["message"].(string)
		requires, _ := v["requires_confirmation"].(bool)
		if reason == "" {
			reason = fmt.Sprintf("%v", v)
		}
		return reason, requires
	default:
		return fmt.Sprintf("%v", result), false
	}
}
