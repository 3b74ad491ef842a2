package solver

import (
	"context"

	"github.com/navarch/homing/internal/models"
)

// ThresholdCheck is one attribute comparison a ThresholdConstraint
// evaluates against every candidate.
type ThresholdCheck struct {
	Attribute string
	Threshold Threshold
}

// ThresholdConstraint keeps candidates whose numeric attributes satisfy
// every check. Candidates missing a checked attribute are dropped.
type ThresholdConstraint struct {
	baseConstraint
	Checks []ThresholdCheck
}

func NewThresholdConstraint(name string, demands []string, checks []ThresholdCheck) *ThresholdConstraint {
	return &ThresholdConstraint{
		baseConstraint: baseConstraint{name: name, ctype: "threshold", rank: RankThreshold, demandList: demands},
		Checks:         checks,
	}
}

func (c *ThresholdConstraint) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	kept := make([]models.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		match := true
		for _, check := range c.Checks {
			value, ok := cand.Float(check.Attribute)
			if !ok || !check.Threshold.Match(value) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, cand)
		}
	}
	return kept
}
