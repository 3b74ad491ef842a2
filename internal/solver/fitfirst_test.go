package solver

import (
	"context"
	"testing"
	"time"

	"github.com/navarch/homing/internal/models"
)

func minCostObjective() *Objective {
	return &Objective{
		Goal:      GoalMin,
		Operation: "sum",
		Operands:  []Operand{{Function: FuncCost}},
	}
}

func TestFitFirstPicksCheapestUnderMinGoal(t *testing.T) {
	d := demandOf("d",
		cand("exp", map[string]interface{}{"cost": 5.0}),
		cand("cheap", map[string]interface{}{"cost": 1.0}),
		cand("mid", map[string]interface{}{"cost": 3.0}),
	)
	req := requestOf(d)
	req.Objective = minCostObjective()

	ff := &FitFirst{Timeout: time.Second}
	path := ff.Search(context.Background(), req.CopyDemands(), req)
	if path == nil {
		t.Fatal("expected a solution")
	}
	if got := path.Decisions["d"].ID(); got != "cheap" {
		t.Fatalf("picked %s, want cheap", got)
	}
	if path.TotalValue != 1.0 {
		t.Fatalf("TotalValue = %v, want 1", path.TotalValue)
	}
}

func TestFitFirstBacktracks(t *testing.T) {
	// d1's greedy pick (same region as d2's only candidate under a
	// "different" zone constraint) dead-ends d2; the search must fall
	// back to d1's second candidate.
	a := cand("a", map[string]interface{}{"location_id": "r1", "cost": 1.0})
	b := cand("b", map[string]interface{}{"location_id": "r2", "cost": 2.0})
	c := cand("c", map[string]interface{}{"location_id": "r1", "cost": 1.0})

	zone := NewZone("spread", []string{"d1", "d2"}, QualifierDifferent, "region", nil)
	d1 := demandOf("d1", a, b)
	d2 := demandOf("d2", c)
	d2.Constraints = []Constraint{zone}

	req := requestOf(d1, d2)
	req.Constraints["spread"] = zone
	req.Objective = minCostObjective()

	ff := &FitFirst{Timeout: time.Second}
	path := ff.Search(context.Background(), req.CopyDemands(), req)
	if path == nil {
		t.Fatal("expected a solution via backtracking")
	}
	if path.Decisions["d1"].ID() != "b" || path.Decisions["d2"].ID() != "c" {
		t.Fatalf("got d1=%s d2=%s, want d1=b d2=c",
			path.Decisions["d1"].ID(), path.Decisions["d2"].ID())
	}
}

func TestFitFirstZeroTimeoutGivesUp(t *testing.T) {
	req := requestOf(demandOf("d", cand("a", nil)))
	ff := &FitFirst{}
	if path := ff.Search(context.Background(), req.CopyDemands(), req); path != nil {
		t.Fatal("zero budget must yield no solution")
	}
}

func TestFitFirstMinAICTieBreak(t *testing.T) {
	// Equal objective values; the higher version must win under min_aic.
	// The older version sorts first so the tie-break has to do the work.
	old := cand("aa", map[string]interface{}{"cost": 1.0, models.AttrAICVersion: "1.0.0"})
	newer := cand("bb", map[string]interface{}{"cost": 1.0, models.AttrAICVersion: "1.2.0"})
	req := requestOf(demandOf("d", old, newer))
	req.Objective = &Objective{
		Goal:     GoalMinAIC,
		Operands: []Operand{{Function: FuncCost}},
	}

	ff := &FitFirst{Timeout: time.Second}
	path := ff.Search(context.Background(), req.CopyDemands(), req)
	if path == nil {
		t.Fatal("expected a solution")
	}
	if got := path.Decisions["d"].ID(); got != "bb" {
		t.Fatalf("picked %s, want bb (higher version on tie)", got)
	}
}
