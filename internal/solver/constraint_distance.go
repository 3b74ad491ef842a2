package solver

import (
	"context"

	"github.com/navarch/homing/internal/models"
)

// AccessDistance keeps a candidate iff the great-circle distance from a
// fixed anchor location to the candidate satisfies the threshold
// comparison (default operator <=). A candidate whose coordinates cannot
// be resolved is dropped.
type AccessDistance struct {
	baseConstraint
	Location  Location
	Threshold Threshold
}

func NewAccessDistance(name string, demands []string, location Location, threshold Threshold) *AccessDistance {
	return &AccessDistance{
		baseConstraint: baseConstraint{
			name:       name,
			ctype:      "access_distance",
			rank:       RankAccessDistance,
			demandList: demands,
		},
		Location:  location,
		Threshold: threshold,
	}
}

func (c *AccessDistance) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	kept := make([]models.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		lat, lon, ok := req.Engine.CandidateLocation(ctx, req.PlanID, cand)
		if !ok {
			continue
		}
		distance := AirDistance(c.Location.Latitude, c.Location.Longitude, lat, lon)
		if c.Threshold.Match(distance) {
			kept = append(kept, cand)
		}
	}
	return kept
}
