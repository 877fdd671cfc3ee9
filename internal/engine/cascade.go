package engine

import (
	"context"

	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// CascadeStep is one level of a predicted decision cascade. Probability is
// the step's own confidence; CumulativeConfidence compounds down the chain.
type CascadeStep struct {
	Level                int           `json:"level"`
	Decision             string        `json:"decision"`
	Effect               structmap.Map `json:"effect"`
	Probability          float64       `json:"probability"`
	CumulativeConfidence float64       `json:"cumulative_confidence"`
}

// PredictCascade expands the chain of downstream decisions for a label.
// Level 1 is the highest-confidence decision whose label contains the
// input (case-insensitive); each further level follows the "nextAction"
// value in the current effect to the decision with that exact label,
// taking the highest-confidence record when labels are duplicated.
// Expansion stops at depth, at a missing or dangling nextAction, or when
// cumulative confidence would fall to or below the 0.1 pruning floor;
// pruned steps are not emitted. No label match returns an empty sequence,
// not an error. The traversal is read-only and visits at most depth
// nodes, so abandoning it mid-way leaves no partial writes.
func (e *Engine) PredictCascade(ctx context.Context, label string, depth int) ([]CascadeStep, error) {
	if label == "" {
		return nil, nil
	}
	if depth <= 0 {
		depth = DefaultCascadeDepth
	}

	base, err := e.DB.BestDecisionContaining(ctx, label)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, nil
	}

	cumulative := base.ConfidenceScore
	if cumulative <= pruneFloor {
		return nil, nil
	}

	steps := []CascadeStep{{
		Level:                1,
		Decision:             base.Decision,
		Effect:               base.ImmediateImpact,
		Probability:          base.ConfidenceScore,
		CumulativeConfidence: cumulative,
	}}

	current := base
	for level := 2; level <= depth; level++ {
		next, ok := current.ImmediateImpact["nextAction"].(string)
		if !ok || next == "" {
			break
		}

		child, err := e.DB.BestDecisionExact(ctx, next)
		if err != nil {
			return nil, err
		}
		if child == nil {
			// Dangling nextAction: the branch ends here.
			break
		}

		cumulative *= child.ConfidenceScore
		if cumulative <= pruneFloor {
			break
		}

		steps = append(steps, CascadeStep{
			Level:                level,
			Decision:             child.Decision,
			Effect:               child.ImmediateImpact,
			Probability:          child.ConfidenceScore,
			CumulativeConfidence: cumulative,
		})
		current = child
	}

	return steps, nil
}
