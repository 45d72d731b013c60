package assistant

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/policy"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

// Classifier decides how a tool may be used.
type Classifier interface {
	Classify(ctx context.Context, toolName string) (policy.Decision, error)
}

// Enforce checks the catalog against the tool policy and returns a copy with
// blocked tools removed. A safe tool the policy wants approved, a sensitive
// tool it allows outright, or a blocked control tool is an error: the graph
// would pause in the wrong place.
func (c Catalog) Enforce(ctx context.Context, cl Classifier) (Catalog, error) {
	var result *multierror.Error

	filter := func(names []tools.Name, want policy.Decision) []tools.Name {
		out := make([]tools.Name, 0, len(names))
		for _, n := range names {
			d, err := cl.Classify(ctx, string(n))
			switch {
			case err != nil:
				result = multierror.Append(result, fmt.Errorf("classify %s: %w", n, err))
			case d == policy.Block:
				log.Warnf("tool %s blocked by policy, not offered to the model", n)
			case d != want:
				result = multierror.Append(result, fmt.Errorf("tool %s: policy says %s, expected %s", n, d, want))
			default:
				out = append(out, n)
			}
		}
		return out
	}

	out := Catalog{Primary: filter(c.Primary, policy.Allow)}
	for _, s := range c.Skills {
		s.Safe = filter(s.Safe, policy.Allow)
		s.Sensitive = filter(s.Sensitive, policy.RequireApproval)
		out.Skills = append(out.Skills, s)
	}

	control := append([]tools.Name(nil), tools.TransferTools...)
	control = append(control, tools.CompleteOrEscalate)
	for _, n := range control {
		d, err := cl.Classify(ctx, string(n))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("classify %s: %w", n, err))
			continue
		}
		if d != policy.Allow {
			result = multierror.Append(result, fmt.Errorf("control tool %s must be allowed, policy says %s", n, d))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return Catalog{}, err
	}
	return out, nil
}
