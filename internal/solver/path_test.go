package solver

import "testing"

func TestDecisionPathExtendIsFunctional(t *testing.T) {
	base := NewDecisionPath()
	a := cand("a", nil)
	b := cand("b", nil)

	one := base.Extend("d1", a)
	two := one.Extend("d2", b)

	if len(base.Decisions) != 0 {
		t.Fatal("Extend mutated the base path")
	}
	if len(one.Decisions) != 1 || one.Decisions["d1"].ID() != "a" {
		t.Fatalf("first extension wrong: %+v", one.Decisions)
	}
	if _, ok := one.Decisions["d2"]; ok {
		t.Fatal("sibling extension leaked into the parent")
	}
	if len(two.Decisions) != 2 || two.CurrentDemand != "d2" {
		t.Fatalf("second extension wrong: %+v", two)
	}
}

func TestDecisionID(t *testing.T) {
	p := NewDecisionPath().Extend("d1", cand("a", nil)).Extend("d2", cand("b", nil))
	if got := p.DecisionID(); got != "d1=a|d2=b" {
		t.Errorf("DecisionID = %q", got)
	}
	if NewDecisionPath().DecisionID() != "" {
		t.Error("empty path must have empty id")
	}
}

func TestComplete(t *testing.T) {
	p := NewDecisionPath().Extend("d1", cand("a", nil))
	if p.Complete(2) {
		t.Error("one decision of two is not complete")
	}
	if !p.Extend("d2", cand("b", nil)).Complete(2) {
		t.Error("two decisions of two is complete")
	}
}
