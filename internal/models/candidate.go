package models

import (
	"fmt"
	"strconv"
)

// Candidate is a flat attribute dictionary describing one inventory item
// (cloud region, service instance, ...). Candidates are value-like; the
// same candidate may sit in several demands' resource maps at once, so
// mutation always goes through Clone.
type Candidate map[string]interface{}

// Well-known candidate attribute keys.
const (
	AttrCandidateID       = "candidate_id"
	AttrInventoryType     = "inventory_type"
	AttrInventoryProvider = "inventory_provider"
	AttrLocationID        = "location_id"
	AttrServiceResourceID = "service_resource_id"
	AttrCost              = "cost"
	AttrLatitude          = "latitude"
	AttrLongitude         = "longitude"
	AttrNodeID            = "node_id"
	AttrConstraints       = "constraints"
	AttrUniqueness        = "uniqueness"
	AttrHPAScore          = "hpa_score"
	AttrAICVersion        = "cloud_region_version"
)

func (c Candidate) ID() string {
	return c.Str(AttrCandidateID)
}

func (c Candidate) LocationID() string {
	return c.Str(AttrLocationID)
}

func (c Candidate) InventoryProvider() string {
	return c.Str(AttrInventoryProvider)
}

func (c Candidate) Str(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

// Float reads a numeric attribute. JSON decoding yields float64; string
// and int forms are tolerated because inventory adapters are inconsistent
// about number encoding.
func (c Candidate) Float(key string) (float64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func (c Candidate) Cost() float64 {
	v, _ := c.Float(AttrCost)
	return v
}

// Unique reports whether this candidate may be used by at most one
// solution. Defaults to true when the attribute is absent.
func (c Candidate) Unique() bool {
	v, ok := c[AttrUniqueness]
	if !ok {
		return true
	}
	switch u := v.(type) {
	case bool:
		return u
	case string:
		return u != "false"
	}
	return true
}

// LatLon returns the embedded coordinates, if both are present.
func (c Candidate) LatLon() (float64, float64, bool) {
	lat, ok := c.Float(AttrLatitude)
	if !ok {
		return 0, 0, false
	}
	lon, ok := c.Float(AttrLongitude)
	if !ok {
		return 0, 0, false
	}
	return lat, lon, true
}

func (c Candidate) Clone() Candidate {
	out := make(Candidate, len(c))
	for k, v := range c {
		if k == AttrConstraints {
			if audit, ok := v.([]string); ok {
				v = append([]string(nil), audit...)
			}
		}
		out[k] = v
	}
	return out
}

// RecordConstraint appends a constraint name to the candidate's audit
// trail. The trail never influences filtering.
func (c Candidate) RecordConstraint(name string) {
	var audit []string
	if v, ok := c[AttrConstraints].([]string); ok {
		audit = v
	}
	c[AttrConstraints] = append(audit, name)
}
