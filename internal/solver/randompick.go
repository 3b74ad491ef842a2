package solver

import (
	"context"
	"math/rand"
	"time"
)

// RandomPick is used when no objective goal is given: it picks an
// arbitrary constraint-satisfying candidate per demand, still backtracking
// when a branch exhausts its candidates.
type RandomPick struct {
	Timeout time.Duration
	// Rand allows tests to pin the choice sequence; nil uses a
	// time-seeded source.
	Rand *rand.Rand
}

func (r *RandomPick) Search(ctx context.Context, demands map[string]*Demand, req *Request) *DecisionPath {
	rng := r.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	begin := time.Now()
	return r.solve(ctx, NewDecisionPath(), demands, req, rng, begin, 0)
}

func (r *RandomPick) solve(ctx context.Context, path *DecisionPath, demands map[string]*Demand, req *Request, rng *rand.Rand, begin time.Time, idx int) *DecisionPath {
	if time.Since(begin) > r.Timeout {
		return nil
	}
	if idx == len(req.DemandOrder) {
		return path
	}

	demand := demands[req.DemandOrder[idx]]
	path.CurrentDemand = demand.Name
	candidates := applyConstraints(ctx, demand, path, req)

	for len(candidates) > 0 {
		if time.Since(begin) > r.Timeout {
			return nil
		}
		pick := candidates[rng.Intn(len(candidates))]
		child := path.Extend(demand.Name, pick)
		if result := r.solve(ctx, child, demands, req, rng, begin, idx+1); result != nil {
			return result
		}
		candidates = removeCandidate(candidates, pick.ID())
	}
	return nil
}
