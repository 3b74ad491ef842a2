package solver

import (
	"context"
	"log"
	"sort"

	"github.com/navarch/homing/internal/models"
)

// Constraint rank fixes the evaluation order per demand so cheap checks
// run before ones that need data-service round trips.
const (
	RankAccessDistance = iota + 1
	RankZone
	RankAttribute
	RankHPA
	RankInventoryGroup
	RankVimFit
	RankInstanceFit
	RankRegionFit
	RankThreshold
	RankOther
)

// Constraint is a pure filter over one demand's candidate list: Solve
// returns a subset of candidates, deterministic for a fixed decision path
// and candidate list, with no side effects on its inputs beyond the
// candidates' audit trail.
type Constraint interface {
	Name() string
	Type() string
	Rank() int
	// Demands returns the demand names this constraint spans: one for
	// per-demand constraints, two or more for cross-demand ones.
	Demands() []string
	Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate
}

type baseConstraint struct {
	name       string
	ctype      string
	rank       int
	demandList []string
}

func (b baseConstraint) Name() string      { return b.name }
func (b baseConstraint) Type() string      { return b.ctype }
func (b baseConstraint) Rank() int         { return b.rank }
func (b baseConstraint) Demands() []string { return b.demandList }

// appliesTo reports whether demandName is in the constraint's span.
func (b baseConstraint) appliesTo(demandName string) bool {
	for _, d := range b.demandList {
		if d == demandName {
			return true
		}
	}
	return false
}

func sortConstraints(constraints []Constraint) {
	sort.SliceStable(constraints, func(i, j int) bool {
		return constraints[i].Rank() < constraints[j].Rank()
	})
}

// applyConstraints runs a demand's constraint chain in rank order against
// the current decision path, stopping early once no candidates remain.
func applyConstraints(ctx context.Context, demand *Demand, path *DecisionPath, req *Request) []models.Candidate {
	candidates := demand.CandidateList()
	for _, c := range demand.Constraints {
		before := len(candidates)
		candidates = c.Solve(ctx, path, candidates, req)
		if len(candidates) < before {
			log.Printf("[solver] constraint %s dropped %d of %d candidates for %s",
				c.Name(), before-len(candidates), before, demand.Name)
		}
		if len(candidates) == 0 {
			return nil
		}
		for _, cand := range candidates {
			cand.RecordConstraint(c.Name())
		}
	}
	return candidates
}
