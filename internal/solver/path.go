package solver

import (
	"strings"

	"github.com/navarch/homing/internal/models"
)

// DecisionPath is the partial-assignment state threaded through a search:
// an ordered mapping demand -> chosen candidate plus the objective value
// accumulated over those decisions. Paths follow a functional-update
// discipline: Extend copies, branches never mutate a shared path, so
// backtracking is just discarding a reference.
type DecisionPath struct {
	Order     []string
	Decisions map[string]models.Candidate

	CurrentDemand  string
	CumulatedValue float64
	TotalValue     float64

	// HeuristicToGo is an optional look-ahead estimate a search may
	// supply; zero when unused.
	HeuristicToGo float64
}

func NewDecisionPath() *DecisionPath {
	return &DecisionPath{Decisions: map[string]models.Candidate{}}
}

// Extend returns a copy of p with one more decision appended.
func (p *DecisionPath) Extend(demandName string, candidate models.Candidate) *DecisionPath {
	decisions := make(map[string]models.Candidate, len(p.Decisions)+1)
	for k, v := range p.Decisions {
		decisions[k] = v
	}
	decisions[demandName] = candidate
	order := make([]string, 0, len(p.Order)+1)
	order = append(order, p.Order...)
	order = append(order, demandName)
	return &DecisionPath{
		Order:          order,
		Decisions:      decisions,
		CurrentDemand:  demandName,
		CumulatedValue: p.CumulatedValue,
		TotalValue:     p.TotalValue,
		HeuristicToGo:  p.HeuristicToGo,
	}
}

// DecisionID identifies the exact sequence of demand/candidate choices.
// Best-First uses it to prune duplicate partial assignments.
func (p *DecisionPath) DecisionID() string {
	parts := make([]string, 0, len(p.Order))
	for _, name := range p.Order {
		parts = append(parts, name+"="+p.Decisions[name].ID())
	}
	return strings.Join(parts, "|")
}

// Complete reports whether every demand has a decision.
func (p *DecisionPath) Complete(demandCount int) bool {
	return len(p.Decisions) == demandCount
}
