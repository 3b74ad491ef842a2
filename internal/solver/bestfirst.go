package solver

import (
	"container/heap"
	"context"
	"time"
)

// BestFirst expands an explicit open list ordered by total objective
// value, with a closed set keyed by decision id to avoid re-expanding
// identical partial assignments. A FitFirst pass supplies the incumbent.
// With a monotone objective the first complete pop is optimal and partial
// paths worse than the incumbent are cut; otherwise partial values say
// nothing about the final value, so the search runs the open list down
// and keeps the best complete path it sees. Either way, if nothing
// complete surfaces the incumbent stands.
type BestFirst struct {
	Timeout time.Duration
}

type openList struct {
	paths []*DecisionPath
	// better orders the heap: true when paths[i] should pop before
	// paths[j].
	better func(a, b float64) bool
}

func (o *openList) Len() int            { return len(o.paths) }
func (o *openList) Less(i, j int) bool  { return o.better(o.paths[i].TotalValue, o.paths[j].TotalValue) }
func (o *openList) Swap(i, j int)       { o.paths[i], o.paths[j] = o.paths[j], o.paths[i] }
func (o *openList) Push(x interface{})  { o.paths = append(o.paths, x.(*DecisionPath)) }
func (o *openList) Pop() interface{} {
	old := o.paths
	n := len(old)
	p := old[n-1]
	o.paths = old[:n-1]
	return p
}

func (b *BestFirst) Search(ctx context.Context, demands map[string]*Demand, req *Request) *DecisionPath {
	begin := time.Now()

	// Incumbent bound from a greedy pass over a fresh demand copy.
	ff := &FitFirst{Timeout: b.Timeout}
	incumbent := ff.Search(ctx, cloneDemands(demands), req)
	if incumbent == nil {
		return nil
	}
	if req.Objective == nil || req.Objective.Goal == GoalNone {
		return incumbent
	}

	better := req.Objective.Better
	prune := req.Objective.monotone()
	best := incumbent

	open := &openList{better: better}
	heap.Init(open)
	heap.Push(open, NewDecisionPath())
	closed := map[string]bool{}

	for open.Len() > 0 {
		if time.Since(begin) > b.Timeout {
			return best
		}
		path := heap.Pop(open).(*DecisionPath)
		if path.Complete(len(req.DemandOrder)) {
			if prune {
				return path
			}
			if better(path.TotalValue, best.TotalValue) {
				best = path
			}
			continue
		}
		id := path.DecisionID()
		if closed[id] {
			continue
		}
		closed[id] = true

		demand := demands[req.DemandOrder[len(path.Decisions)]]
		path.CurrentDemand = demand.Name
		for _, cand := range applyConstraints(ctx, demand, path, req) {
			child := path.Extend(demand.Name, cand)
			req.Objective.Compute(ctx, child, req)
			// Cut against the incumbent: strictly-better only, and only
			// when partial values bound the final value.
			if prune && !better(child.TotalValue, incumbent.TotalValue) {
				continue
			}
			if closed[child.DecisionID()] {
				continue
			}
			heap.Push(open, child)
		}
	}
	return best
}

func cloneDemands(demands map[string]*Demand) map[string]*Demand {
	out := make(map[string]*Demand, len(demands))
	for name, d := range demands {
		out[name] = d.clone()
	}
	return out
}
