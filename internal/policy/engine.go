// Package policy classifies tools with an OPA policy.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision is the policy verdict for a tool.
type Decision string

const (
	Allow           Decision = "allow"
	RequireApproval Decision = "require_approval"
	Block           Decision = "block"
)

//go:embed tool_policy.rego
var DefaultPolicy string

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewDefaultEngine creates an engine for the embedded travel policy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return NewEngine(ctx, DefaultPolicy)
}

// Evaluate checks the tool policy for input, a map with at least tool_name.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// The policy defines a default, so an empty result means it is broken.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", fmt.Errorf("policy returned no decision")
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected policy result %T", results[0].Expressions[0].Value)
	}
	switch d := Decision(s); d {
	case Allow, RequireApproval, Block:
		return d, nil
	default:
		return "", fmt.Errorf("unknown policy decision %q", s)
	}
}

// Classify evaluates the policy for a single tool.
func (e *Engine) Classify(ctx context.Context, toolName string) (Decision, error) {
	return e.Evaluate(ctx, map[string]interface{}{"tool_name": toolName})
}
