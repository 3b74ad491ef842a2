package solver

import (
	"context"
	"time"

	"github.com/navarch/homing/internal/models"
)

// FitFirst is depth-first greedy search with backtracking: at each demand
// it tries the constraint-satisfying candidate with the best marginal
// objective value, recursing into the remaining demands and falling back
// to the next-best candidate when a branch dead-ends. Bounded by a
// wall-clock budget; exceeding it yields no solution, which callers must
// read as "give up", not as a value judgment.
type FitFirst struct {
	Timeout time.Duration
}

func (f *FitFirst) Search(ctx context.Context, demands map[string]*Demand, req *Request) *DecisionPath {
	begin := time.Now()
	return f.solve(ctx, NewDecisionPath(), demands, req, begin, 0)
}

func (f *FitFirst) solve(ctx context.Context, path *DecisionPath, demands map[string]*Demand, req *Request, begin time.Time, idx int) *DecisionPath {
	if time.Since(begin) > f.Timeout {
		return nil
	}
	if idx == len(req.DemandOrder) {
		return path
	}

	demand := demands[req.DemandOrder[idx]]
	path.CurrentDemand = demand.Name
	candidates := applyConstraints(ctx, demand, path, req)

	for len(candidates) > 0 {
		if time.Since(begin) > f.Timeout {
			return nil
		}
		pick, child := f.pickBest(ctx, path, demand.Name, candidates, req)
		if result := f.solve(ctx, child, demands, req, begin, idx+1); result != nil {
			return result
		}
		candidates = removeCandidate(candidates, pick.ID())
	}
	return nil
}

// pickBest extends the path with each candidate, scores the extension, and
// returns the best candidate plus its extended path. With no objective
// goal the first candidate wins. For the min_aic goal, ties prefer the
// higher AIC version.
func (f *FitFirst) pickBest(ctx context.Context, path *DecisionPath, demandName string, candidates []models.Candidate, req *Request) (models.Candidate, *DecisionPath) {
	if req.Objective == nil || req.Objective.Goal == GoalNone {
		return candidates[0], path.Extend(demandName, candidates[0])
	}

	var (
		best     models.Candidate
		bestPath *DecisionPath
	)
	for _, cand := range candidates {
		child := path.Extend(demandName, cand)
		req.Objective.Compute(ctx, child, req)
		if best == nil {
			best, bestPath = cand, child
			continue
		}
		if req.Objective.Better(child.TotalValue, bestPath.TotalValue) {
			best, bestPath = cand, child
			continue
		}
		if req.Objective.Goal == GoalMinAIC && child.TotalValue == bestPath.TotalValue {
			if CompareVersions(cand.Str(models.AttrAICVersion), best.Str(models.AttrAICVersion)) > 0 {
				best, bestPath = cand, child
			}
		}
	}
	return best, bestPath
}

func removeCandidate(candidates []models.Candidate, id string) []models.Candidate {
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID() != id {
			out = append(out, c)
		}
	}
	return out
}
