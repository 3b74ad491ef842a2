package solver

import (
	"context"
	"log"
	"time"

	"github.com/navarch/homing/internal/models"
)

// Strategy is a search algorithm over the decision space. Search operates
// on its own deep copy of the demand map and returns a complete decision
// path or nil.
type Strategy interface {
	Search(ctx context.Context, demands map[string]*Demand, req *Request) *DecisionPath
}

// randomRetryLimit bounds consecutive incomplete RandomPick attempts
// before the optimizer gives up on further solutions.
const randomRetryLimit = 10

// Optimizer orchestrates demand ordering and repeated search invocations
// to produce up to the requested number of distinct solutions.
type Optimizer struct {
	Timeout time.Duration
}

// PickStrategy selects the search for a request: RandomPick when the
// objective has no goal, FitFirst otherwise. BestFirst is opt-in via the
// request type.
func (o *Optimizer) PickStrategy(req *Request) Strategy {
	if req.Objective == nil || req.Objective.Goal == GoalNone {
		return &RandomPick{Timeout: o.Timeout}
	}
	if req.RequestType == "best_first" {
		return &BestFirst{Timeout: o.Timeout}
	}
	return &FitFirst{Timeout: o.Timeout}
}

// Solve returns up to req.NumSolutions decision maps in discovery order
// (0 means all distinct solutions). Between solutions, consumed candidates
// marked unique are removed from the live demand resources so later
// solutions cannot reuse them. With shared candidates nothing shrinks
// between runs, so the "all" mode stops as soon as a decision set repeats;
// the whole loop is additionally bounded by the search timeout.
func (o *Optimizer) Solve(ctx context.Context, req *Request) []map[string]models.Candidate {
	req.DemandOrder = OrderDemands(req)
	strategy := o.PickStrategy(req)
	_, isRandom := strategy.(*RandomPick)

	begin := time.Now()
	seen := map[string]bool{}
	var solutions []map[string]models.Candidate
	retries := 0
	for {
		if req.NumSolutions > 0 && len(solutions) >= req.NumSolutions {
			break
		}
		if o.Timeout > 0 && time.Since(begin) > o.Timeout {
			break
		}
		path := strategy.Search(ctx, req.CopyDemands(), req)
		if path == nil {
			if isRandom && retries < randomRetryLimit-1 {
				retries++
				continue
			}
			break
		}
		if req.NumSolutions == 0 && seen[path.DecisionID()] {
			if isRandom && retries < randomRetryLimit-1 {
				retries++
				continue
			}
			break
		}
		seen[path.DecisionID()] = true
		retries = 0
		solutions = append(solutions, path.Decisions)
		o.removeUniqueCandidates(req, path)
		log.Printf("[optimizer] plan %s: solution %d found (value %.3f)", req.PlanID, len(solutions), path.TotalValue)
	}
	return solutions
}

// removeUniqueCandidates strips just-consumed unique candidates from the
// live (non-copied) demand resources.
func (o *Optimizer) removeUniqueCandidates(req *Request, path *DecisionPath) {
	for demandName, cand := range path.Decisions {
		if !cand.Unique() {
			continue
		}
		if demand, ok := req.Demands[demandName]; ok {
			delete(demand.Resources, cand.ID())
		}
	}
}
