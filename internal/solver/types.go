package solver

import (
	"sort"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
)

// Location is a named geographic anchor. Immutable once parsed.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Country   string
}

// Demand is a named placement request. Resources shrinks monotonically
// while one search attempt applies constraints; searches operate on deep
// copies so the live request survives between attempts.
type Demand struct {
	Name        string
	Resources   map[string]models.Candidate
	Constraints []Constraint

	// sortBase marks demands already placed by the topological ordering.
	sortBase bool
}

// CandidateList returns the demand's candidates in a deterministic order.
func (d *Demand) CandidateList() []models.Candidate {
	ids := make([]string, 0, len(d.Resources))
	for id := range d.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Resources[id])
	}
	return out
}

func (d *Demand) clone() *Demand {
	resources := make(map[string]models.Candidate, len(d.Resources))
	for id, c := range d.Resources {
		resources[id] = c.Clone()
	}
	return &Demand{
		Name:        d.Name,
		Resources:   resources,
		Constraints: d.Constraints,
	}
}

// Request is a fully parsed homing request: the solver-ready form of one
// plan's translation.
type Request struct {
	PlanID      string
	RequestType string
	Demands     map[string]*Demand
	DemandOrder []string
	Locations   map[string]Location
	Constraints map[string]Constraint
	Objective   *Objective

	// NumSolutions is the requested recommendation count; 0 means "all".
	NumSolutions int

	// Engine resolves candidate zones and coordinates for constraints and
	// operands.
	Engine *data.Engine
}

// CopyDemands deep-copies the demand list for one search attempt, leaving
// the live resource maps untouched.
func (r *Request) CopyDemands() map[string]*Demand {
	out := make(map[string]*Demand, len(r.Demands))
	for name, d := range r.Demands {
		out[name] = d.clone()
	}
	return out
}
