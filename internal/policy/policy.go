// Package policy applies an optional rego verdict policy to verification
// results. The policy sees one result as input and answers with an action.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionReview Action = "review"
)

func (a Action) valid() bool {
	switch a {
	case ActionAccept, ActionReject, ActionReview:
		return true
	}
	return false
}

// ErrUndefined is returned when the policy query has no value for a result.
var ErrUndefined = errors.New("verdict policy produced no decision")

// Decision is what a verdict policy says to do with an address. It is
// advisory and never changes the reachability verdict.
type Decision struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Evaluator holds a compiled verdict query. It is safe for concurrent use.
type Evaluator struct {
	module string
	query  rego.PreparedEvalQuery
}

// NewEvaluator reads and compiles the rego file at path. An empty path
// yields a nil Evaluator, which decides nothing.
func NewEvaluator(ctx context.Context, path, query string) (*Evaluator, error) {
	if path == "" {
		return nil, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read verdict policy: %w", err)
	}

	return compile(ctx, filepath.Base(path), string(src), query)
}

func NewEvaluatorFromSource(ctx context.Context, src, query string) (*Evaluator, error) {
	return compile(ctx, "verdict.rego", src, query)
}

func compile(ctx context.Context, module, src, query string) (*Evaluator, error) {
	pq, err := rego.New(
		rego.Query(query),
		rego.Module(module, src),
		rego.SetRegoVersion(ast.RegoV1),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile verdict policy %s: %w", module, err)
	}
	return &Evaluator{module: module, query: pq}, nil
}

// Decide evaluates the policy with the result's JSON form as input.
func (e *Evaluator) Decide(ctx context.Context, res types.VerificationResult) (*Decision, error) {
	if e == nil {
		return nil, nil
	}

	input, err := ast.InterfaceToValue(res)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to policy input: %w", res.Email, err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalParsedInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate verdict policy %s: %w", e.module, err)
	}

	switch {
	case len(rs) == 0 || len(rs[0].Expressions) == 0:
		return nil, ErrUndefined
	case len(rs) > 1:
		return nil, fmt.Errorf("verdict policy %s returned %d results, want one", e.module, len(rs))
	}

	return decisionOf(rs[0].Expressions[0].Value)
}

// decisionOf reads {"action": string, "reason"?: string} from a query value.
func decisionOf(v any) (*Decision, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("verdict policy must return an object, got %T", v)
	}

	action, _ := obj["action"].(string)
	d := &Decision{Action: Action(action)}
	if !d.Action.valid() {
		return nil, fmt.Errorf("verdict policy returned unknown action %q", obj["action"])
	}

	if r, ok := obj["reason"]; ok && r != nil {
		reason, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("verdict policy reason must be a string, got %T", r)
		}
		d.Reason = reason
	}

	return d, nil
}
