// Package policy is the admission check for one signal action: does
// it clear the confidence threshold, and is it not already covered by
// an existing deliverable of the same type. Cross-action reduction
// (one action per type per pass, signal-history dedup window) is
// plain Go in pkg/signal since it needs state across the whole batch,
// not per-item admission.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed policy.rego
var policySrc string

// Input is one action's admission-check input.
type Input struct {
	ActionType          string
	DeliverableType     string
	Confidence          float64
	ConfidenceThreshold float64
	ExistingTypes       []string
}

// Checker evaluates Input against the compiled admission policy.
type Checker struct {
	query rego.PreparedEvalQuery
}

// NewChecker compiles policy.rego once; reuse the Checker across
// every action evaluated during a process run.
func NewChecker(ctx context.Context) (*Checker, error) {
	r := rego.New(
		rego.Query("data.signal.allow"),
		rego.Module("policy.rego", policySrc),
	)
	q, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile signal admission policy: %w", err)
	}
	return &Checker{query: q}, nil
}

// Allow reports whether in is admissible.
func (c *Checker) Allow(ctx context.Context, in Input) (bool, error) {
	rs, err := c.query.Eval(ctx, rego.EvalInput(map[string]any{
		"action_type":          in.ActionType,
		"deliverable_type":     in.DeliverableType,
		"confidence":           in.Confidence,
		"confidence_threshold": in.ConfidenceThreshold,
		"existing_types":       in.ExistingTypes,
	}))
	if err != nil {
		return false, fmt.Errorf("evaluate signal admission policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}
