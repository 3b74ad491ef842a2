package data

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/navarch/homing/internal/cache"
	"github.com/navarch/homing/internal/models"
)

// Zone categories the constraint engine understands.
const (
	ZoneRegion  = "region"
	ZoneComplex = "complex"
	ZoneCountry = "country"
)

// Engine is the constraint engine interface: the thin facade constraints
// and operands use to resolve a candidate's zone or coordinates without
// embedding inventory logic in the solver. Lookups prefer attributes
// embedded on the candidate and fall back to a synchronous data-service
// call. A failed lookup returns ok=false; the caller decides whether that
// means "drop candidate" or "treat as non-match", and never aborts a
// search.
type Engine struct {
	client Client
	cache  *cache.Cache
}

func NewEngine(client Client, c *cache.Cache) *Engine {
	return &Engine{client: client, cache: c}
}

// Client exposes the underlying data-service client for constraints that
// issue batch filter calls directly.
func (e *Engine) Client() Client {
	return e.client
}

// CandidateZone resolves the zone value of a candidate for a category.
func (e *Engine) CandidateZone(ctx context.Context, planID string, candidate models.Candidate, category string) (string, bool) {
	switch strings.ToLower(category) {
	case ZoneRegion:
		if v := candidate.LocationID(); v != "" {
			return v, true
		}
	case ZoneComplex:
		if v, ok := candidate["complex_name"].(string); ok && v != "" {
			return v, true
		}
	case ZoneCountry:
		if v, ok := candidate["country"].(string); ok && v != "" {
			return v, true
		}
	}

	key := fmt.Sprintf("zone/%s/%s", category, candidate.ID())
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v.(string), true
		}
	}
	if e.client == nil {
		return "", false
	}
	zone, err := e.client.GetCandidateZone(ctx, planID, candidate, category)
	if err != nil || zone == "" {
		if err != nil {
			log.Printf("[engine] zone lookup %s/%s: %v", candidate.ID(), category, err)
		}
		return "", false
	}
	if e.cache != nil {
		e.cache.Set(key, zone)
	}
	return zone, true
}

// CandidateLocation resolves a candidate's coordinates.
func (e *Engine) CandidateLocation(ctx context.Context, planID string, candidate models.Candidate) (float64, float64, bool) {
	if lat, lon, ok := candidate.LatLon(); ok {
		return lat, lon, true
	}

	key := "loc/" + candidate.ID()
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			ll := v.([2]float64)
			return ll[0], ll[1], true
		}
	}
	if e.client == nil {
		return 0, 0, false
	}
	lat, lon, err := e.client.GetCandidateLocation(ctx, planID, candidate)
	if err != nil {
		log.Printf("[engine] location lookup %s: %v", candidate.ID(), err)
		return 0, 0, false
	}
	if e.cache != nil {
		e.cache.Set(key, [2]float64{lat, lon})
	}
	return lat, lon, true
}
