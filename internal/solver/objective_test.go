package solver

import (
	"context"
	"math"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2.0", "1.0.0", 1},
		{"1.0.0", "1.2.0", -1},
		{"1.0", "1.0.0", 0},
		{"1.0.1", "1.0", 1},
		{"2", "1.9.9", 1},
		{"", "", 0},
		{"", "0.0.1", -1},
	}
	for _, tc := range cases {
		if got := CompareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestObjectiveBetter(t *testing.T) {
	min := &Objective{Goal: GoalMin}
	if !min.Better(1, 2) || min.Better(2, 1) {
		t.Error("min goal: smaller is better")
	}
	max := &Objective{Goal: GoalMax}
	if !max.Better(2, 1) || max.Better(1, 2) {
		t.Error("max goal: larger is better")
	}
	// min_aic compares like min.
	aic := &Objective{Goal: GoalMinAIC}
	if !aic.Better(1, 2) {
		t.Error("min_aic goal: smaller is better")
	}
}

func TestDistanceOperandAddsPlacementCosts(t *testing.T) {
	// Both endpoints are decided demands with embedded coordinates one
	// degree of latitude apart, each carrying a placement cost.
	a := cand("a", map[string]interface{}{"latitude": 0.0, "longitude": 0.0, "cost": 2.0})
	b := cand("b", map[string]interface{}{"latitude": 1.0, "longitude": 0.0, "cost": 3.0})
	req := requestOf(demandOf("d1", a), demandOf("d2", b))
	path := NewDecisionPath().Extend("d1", a).Extend("d2", b)

	op := Operand{
		Function:  FuncDistanceBetween,
		Endpoints: []Endpoint{{Demand: "d1"}, {Demand: "d2"}},
	}
	got := op.Compute(context.Background(), path, req)
	want := AirDistance(0, 0, 1, 0) + 2 + 3
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("distance operand = %v, want %v", got, want)
	}
}

func TestDistanceOperandUndecidedEndpointIsZero(t *testing.T) {
	a := cand("a", map[string]interface{}{"latitude": 0.0, "longitude": 0.0})
	req := requestOf(demandOf("d1", a), demandOf("d2", cand("b", nil)))
	path := NewDecisionPath().Extend("d1", a)

	op := Operand{
		Function:  FuncDistanceBetween,
		Endpoints: []Endpoint{{Demand: "d1"}, {Demand: "d2"}},
	}
	if got := op.Compute(context.Background(), path, req); got != 0 {
		t.Fatalf("undecided endpoint must contribute 0, got %v", got)
	}
}

func TestHPAScoreOperandRewardsHigherScores(t *testing.T) {
	low := NewDecisionPath().Extend("d", cand("l", map[string]interface{}{"hpa_score": 2.0}))
	high := NewDecisionPath().Extend("d", cand("h", map[string]interface{}{"hpa_score": 8.0}))
	req := requestOf(demandOf("d", cand("x", nil)))

	op := Operand{Function: FuncHPAScore}
	lv := op.Compute(context.Background(), low, req)
	hv := op.Compute(context.Background(), high, req)
	// Under a min goal the higher HPA score must evaluate as the smaller
	// objective value.
	if hv >= lv {
		t.Fatalf("hpa_score: high=%v low=%v, high must be smaller", hv, lv)
	}
}

func TestWeightedOperand(t *testing.T) {
	a := cand("a", map[string]interface{}{"cost": 10.0})
	req := requestOf(demandOf("d", a))
	path := NewDecisionPath().Extend("d", a)

	op := Operand{Function: FuncCost, Demand: "d", Operation: "product", Weight: 0.5}
	if got := op.Compute(context.Background(), path, req); got != 5 {
		t.Fatalf("weighted cost = %v, want 5", got)
	}
}

func TestAICVersionOperandOrdersVersions(t *testing.T) {
	older := NewDecisionPath().Extend("d", cand("o", map[string]interface{}{"cloud_region_version": "1.0.0"}))
	newer := NewDecisionPath().Extend("d", cand("n", map[string]interface{}{"cloud_region_version": "1.2.0"}))
	req := requestOf(demandOf("d", cand("x", nil)))

	op := Operand{Function: FuncAICVersion, Demand: "d"}
	ov := op.Compute(context.Background(), older, req)
	nv := op.Compute(context.Background(), newer, req)
	if nv <= ov {
		t.Fatalf("aic_version: newer=%v older=%v, newer must weigh more", nv, ov)
	}
}

func TestObjectiveComputeSumsOperands(t *testing.T) {
	a := cand("a", map[string]interface{}{"cost": 2.0, "hpa_score": 1.0})
	req := requestOf(demandOf("d", a))
	path := NewDecisionPath().Extend("d", a)

	obj := &Objective{
		Goal:      GoalMin,
		Operation: "sum",
		Operands: []Operand{
			{Function: FuncCost},
			{Function: FuncHPAScore},
		},
	}
	obj.Compute(context.Background(), path, req)
	if path.CumulatedValue != 1.0 { // 2 + (-1)
		t.Fatalf("CumulatedValue = %v, want 1", path.CumulatedValue)
	}
	if path.TotalValue != path.CumulatedValue {
		t.Fatal("TotalValue must equal CumulatedValue with no heuristic")
	}
}
