package solver

import (
	"context"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
)

// Zone qualifiers.
const (
	QualifierSame      = "same"
	QualifierDifferent = "different"
)

// Zone keeps a candidate iff its zone value (per category) relates to the
// zone of every already-decided demand in the constraint's span: equal for
// qualifier "same", unequal for "different". With category "country" and a
// fixed anchor location, the candidate is additionally checked against the
// location's country. Candidates whose zone cannot be resolved are
// dropped.
type Zone struct {
	baseConstraint
	Qualifier string
	Category  string
	Location  *Location
}

func NewZone(name string, demands []string, qualifier, category string, location *Location) *Zone {
	return &Zone{
		baseConstraint: baseConstraint{
			name:       name,
			ctype:      "zone",
			rank:       RankZone,
			demandList: demands,
		},
		Qualifier: qualifier,
		Category:  category,
		Location:  location,
	}
}

func (c *Zone) qualifies(candidateZone, otherZone string) bool {
	if c.Qualifier == QualifierDifferent {
		return candidateZone != otherZone
	}
	return candidateZone == otherZone
}

func (c *Zone) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	// Zones of the already-decided demands in this constraint's span.
	decidedZones := make([]string, 0, len(c.demandList))
	for _, name := range c.demandList {
		decided, ok := path.Decisions[name]
		if !ok || name == path.CurrentDemand {
			continue
		}
		zone, ok := req.Engine.CandidateZone(ctx, req.PlanID, decided, c.Category)
		if !ok {
			// Unresolvable peer zone: no basis to compare, treat the peer
			// as unconstraining rather than failing the search.
			continue
		}
		decidedZones = append(decidedZones, zone)
	}

	kept := make([]models.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		zone, ok := req.Engine.CandidateZone(ctx, req.PlanID, cand, c.Category)
		if !ok {
			continue
		}
		if c.Category == data.ZoneCountry && c.Location != nil && c.Location.Country != "" {
			if !c.qualifies(zone, c.Location.Country) {
				continue
			}
		}
		match := true
		for _, other := range decidedZones {
			if !c.qualifies(zone, other) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, cand)
		}
	}
	return kept
}
