package solver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Comparison operators accepted by distance and threshold constraints.
const (
	OpLT  = "<"
	OpLTE = "<="
	OpGT  = ">"
	OpGTE = ">="
	OpEQ  = "="
)

// Compare applies op to (value, threshold). Unknown operators never match.
func Compare(op string, value, threshold float64) bool {
	switch op {
	case OpLT:
		return value < threshold
	case OpLTE:
		return value <= threshold
	case OpGT:
		return value > threshold
	case OpGTE:
		return value >= threshold
	case OpEQ:
		return value == threshold
	}
	return false
}

// Threshold is a parsed comparison spec such as "< 100 km". HasRange is an
// explicit flag: a min/max pair of zero is a legitimate range, absence of a
// range is not inferred from zero values.
type Threshold struct {
	Operator string
	Value    float64
	Unit     string

	HasRange bool
	Min      float64
	Max      float64
}

// knownUnits maps distance units to a kilometer multiplier.
var knownUnits = map[string]float64{
	"km": 1, "m": 0.001, "mi": 1.609344, "ms": 1,
}

// ParseThreshold parses "<OP> <VALUE> [UNIT]" with defaultOp used when the
// operator is omitted. The value is normalized to the unit's base (km for
// distance units).
func ParseThreshold(spec string, defaultOp string) (Threshold, error) {
	fields := strings.Fields(strings.TrimSpace(spec))
	if len(fields) == 0 {
		return Threshold{}, fmt.Errorf("empty threshold spec")
	}
	t := Threshold{Operator: defaultOp}
	switch fields[0] {
	case OpLT, OpLTE, OpGT, OpGTE, OpEQ:
		t.Operator = fields[0]
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return Threshold{}, fmt.Errorf("threshold %q has no value", spec)
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("threshold value %q: %w", fields[0], err)
	}
	t.Value = value
	if len(fields) > 1 {
		unit := strings.ToLower(fields[1])
		mult, ok := knownUnits[unit]
		if !ok {
			return Threshold{}, fmt.Errorf("unknown threshold unit %q", fields[1])
		}
		t.Unit = unit
		t.Value = value * mult
	}
	return t, nil
}

// WithRange returns a copy of t carrying an explicit [min, max] range.
func (t Threshold) WithRange(min, max float64) Threshold {
	t.HasRange = true
	t.Min = min
	t.Max = max
	return t
}

// Match checks a value against the threshold: the range when one is set,
// the comparison operator otherwise.
func (t Threshold) Match(value float64) bool {
	if t.HasRange {
		return value >= t.Min && value <= t.Max
	}
	return Compare(t.Operator, value, t.Value)
}

const earthRadiusKm = 6371.0

// AirDistance is the great-circle (haversine) distance between two
// coordinates, in kilometers.
func AirDistance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180.0
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
