package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/polisai/polis-cipher/pkg/domain"
)

// Action defines the outcome of a policy evaluation.
type Action string

const (
	// ActionAllow permits the request to proceed.
	ActionAllow Action = "allow"
	// ActionBlock terminates the request.
	ActionBlock Action = "block"
)

// Decision captures the result from a filter evaluation.
type Decision struct {
	Action   Action
	Reason   string
	Metadata map[string]string
}

// Allowed reports whether the decision lets the request through.
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// Input describes a codec request for policy evaluation.
type Input struct {
	Operation     domain.Operation
	MessageLength int
	KeyLength     int
	KeyID         string
	Client        string
	Limits        Limits
	Entrypoint    string
	DisableCache  bool
}

// Limits are configured bounds passed to policies as input.limits.
type Limits struct {
	MaxMessageLength int
}

// Filter evaluates a policy decision for a given input.
type Filter interface {
	Evaluate(ctx context.Context, input Input) (Decision, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, input Input) (Decision, error)

// Evaluate calls f.
func (f FilterFunc) Evaluate(ctx context.Context, input Input) (Decision, error) {
	return f(ctx, input)
}

// Chain composes multiple filters, short-circuiting on terminal decisions.
type Chain struct {
	filters []Filter
}

// NewChain constructs a filter chain. Nil filters are skipped.
func NewChain(filters ...Filter) Chain {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	return Chain{filters: kept}
}

// Evaluate executes the chain until a terminal decision is produced.
func (c Chain) Evaluate(ctx context.Context, input Input) (Decision, error) {
	for _, filter := range c.filters {
		decision, err := filter.Evaluate(ctx, input)
		if err != nil {
			return Decision{}, err
		}
		if decision.Metadata == nil {
			decision.Metadata = map[string]string{}
		}
		switch decision.Action {
		case ActionAllow:
			// continue evaluating subsequent filters
		case ActionBlock:
			return decision, nil
		default:
			return Decision{}, errors.New("unknown policy action")
		}
	}

	return Decision{Action: ActionAllow, Metadata: map[string]string{}}, nil
}

// LengthLimit blocks messages longer than input.Limits.MaxMessageLength
// without a round trip through the Rego engine. A zero limit disables it.
func LengthLimit() Filter {
	return FilterFunc(func(_ context.Context, input Input) (Decision, error) {
		limit := input.Limits.MaxMessageLength
		if limit > 0 && input.MessageLength > limit {
			return Decision{
				Action: ActionBlock,
				Reason: fmt.Sprintf("message length %d exceeds limit %d", input.MessageLength, limit),
			}, nil
		}
		return Decision{Action: ActionAllow}, nil
	})
}
