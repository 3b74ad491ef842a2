package solver

import (
	"context"
	"log"

	"github.com/navarch/homing/internal/models"
)

// InventoryGroup restricts candidates to those the inventory reports as
// paired with the candidate already chosen for the other demand of its
// two-demand span. Until that other demand is decided, the constraint is a
// deliberate no-op: it is evaluated lazily and symmetrically, whichever of
// the pair is solved first.
type InventoryGroup struct {
	baseConstraint
}

func NewInventoryGroup(name string, demands []string) *InventoryGroup {
	return &InventoryGroup{
		baseConstraint: baseConstraint{
			name:       name,
			ctype:      "inventory_group",
			rank:       RankInventoryGroup,
			demandList: demands,
		},
	}
}

func (c *InventoryGroup) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	var partner models.Candidate
	for _, name := range c.demandList {
		if name == path.CurrentDemand {
			continue
		}
		if decided, ok := path.Decisions[name]; ok {
			partner = decided
			break
		}
	}
	if partner == nil {
		return candidates
	}

	paired, err := req.Engine.Client().GetInventoryGroupCandidates(ctx, req.PlanID, path.CurrentDemand, partner)
	if err != nil {
		log.Printf("[solver] inventory group %s: %v", c.name, err)
		return nil
	}
	allowed := make(map[string]bool, len(paired))
	for _, p := range paired {
		allowed[p.ID()] = true
	}

	kept := make([]models.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if allowed[cand.ID()] {
			kept = append(kept, cand)
		}
	}
	return kept
}
