package solver

import (
	"context"
	"strconv"
	"strings"

	"github.com/navarch/homing/internal/models"
)

// Objective goals.
const (
	GoalMin    = "min"
	GoalMax    = "max"
	GoalMinAIC = "min_aic"
	GoalNone   = ""
)

// Operand functions.
const (
	FuncDistanceBetween = "distance_between"
	FuncLatencyBetween  = "latency_between"
	FuncHPAScore        = "hpa_score"
	FuncAttribute       = "attribute"
	FuncAICVersion      = "aic_version"
	FuncCost            = "cost"
)

// Endpoint is one side of a distance/latency operand: either a fixed
// location or a demand whose decided candidate supplies the coordinates.
type Endpoint struct {
	Location *Location
	Demand   string
}

// Operand is one weighted term of an objective.
type Operand struct {
	Operation string // "product"
	Weight    float64
	Function  string

	// Endpoints for distance_between / latency_between (exactly two).
	Endpoints []Endpoint
	// Demand and Attribute for attribute/hpa_score/aic_version/cost terms.
	Demand    string
	Attribute string
}

// resolveEndpoint returns the coordinates of an endpoint, plus the decided
// candidate's placement cost when the endpoint is a demand. A demand
// endpoint that is not yet decided resolves to ok=false and the operand
// contributes zero.
func (o Operand) resolveEndpoint(ctx context.Context, ep Endpoint, path *DecisionPath, req *Request) (lat, lon, cost float64, ok bool) {
	if ep.Location != nil {
		return ep.Location.Latitude, ep.Location.Longitude, 0, true
	}
	decided, found := path.Decisions[ep.Demand]
	if !found {
		return 0, 0, 0, false
	}
	lat, lon, ok = req.Engine.CandidateLocation(ctx, req.PlanID, decided)
	if !ok {
		return 0, 0, 0, false
	}
	return lat, lon, decided.Cost(), true
}

// Compute evaluates the operand against the current decision path. The
// result is already scaled by Weight when the operand operation is
// "product".
func (o Operand) Compute(ctx context.Context, path *DecisionPath, req *Request) float64 {
	var value float64
	switch o.Function {
	case FuncDistanceBetween, FuncLatencyBetween:
		if len(o.Endpoints) != 2 {
			return 0
		}
		lat1, lon1, cost1, ok1 := o.resolveEndpoint(ctx, o.Endpoints[0], path, req)
		lat2, lon2, cost2, ok2 := o.resolveEndpoint(ctx, o.Endpoints[1], path, req)
		if !ok1 || !ok2 {
			return 0
		}
		// Candidates with nonzero placement cost are penalized on top of
		// the geometric term.
		value = AirDistance(lat1, lon1, lat2, lon2) + cost1 + cost2
	case FuncHPAScore:
		// Higher HPA desirability must shrink a min-goal value.
		for _, decided := range path.Decisions {
			if score, ok := decided.Float(models.AttrHPAScore); ok {
				value += -1 * score
			}
		}
	case FuncAttribute:
		decided, found := path.Decisions[o.Demand]
		if !found {
			return 0
		}
		value, _ = decided.Float(o.Attribute)
	case FuncAICVersion:
		decided, found := path.Decisions[o.Demand]
		if !found {
			return 0
		}
		value = versionWeight(decided.Str(models.AttrAICVersion))
	case FuncCost:
		if o.Demand != "" {
			decided, found := path.Decisions[o.Demand]
			if !found {
				return 0
			}
			value = decided.Cost()
		} else {
			for _, decided := range path.Decisions {
				value += decided.Cost()
			}
		}
	}
	if o.Operation == "product" {
		value *= o.Weight
	}
	return value
}

// Objective combines operands through a sum and stamps the resulting value
// onto the decision path.
type Objective struct {
	Goal      string
	Operation string // "sum"
	Operands  []Operand
}

// Compute folds every operand and sets the path's cumulated and total
// values. Total includes the path's look-ahead heuristic when a search
// supplies one.
func (o *Objective) Compute(ctx context.Context, path *DecisionPath, req *Request) {
	value := 0.0
	for _, op := range o.Operands {
		value += op.Compute(ctx, path, req)
	}
	path.CumulatedValue = value
	path.TotalValue = value + path.HeuristicToGo
}

// monotone reports whether path values can only move away from the goal
// as decisions are added, which makes cutting partial paths against a
// complete incumbent sound. Maximization, negatively weighted operands,
// hpa_score (negative contributions), and free-form attribute terms all
// break the property.
func (o *Objective) monotone() bool {
	if o.Goal != GoalMin && o.Goal != GoalMinAIC {
		return false
	}
	for _, op := range o.Operands {
		if op.Function == FuncHPAScore || op.Function == FuncAttribute {
			return false
		}
		if op.Operation == "product" && op.Weight < 0 {
			return false
		}
	}
	return true
}

// Better reports whether value a beats b under the objective's goal.
func (o *Objective) Better(a, b float64) bool {
	if o.Goal == GoalMax {
		return a > b
	}
	return a < b
}

// CompareVersions compares dotted-integer version strings; missing
// components count as zero. Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// versionWeight folds a dotted version into a single comparable number.
func versionWeight(v string) float64 {
	parts := strings.Split(v, ".")
	weight := 0.0
	mult := 1e6
	for i := 0; i < 3; i++ {
		n := 0
		if i < len(parts) {
			n, _ = strconv.Atoi(strings.TrimSpace(parts[i]))
		}
		weight += float64(n) * mult
		mult /= 1000
	}
	return weight
}
