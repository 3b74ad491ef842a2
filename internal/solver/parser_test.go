package solver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navarch/homing/internal/models"
)

const sampleTranslation = `{
  "conductor_solver": {
    "version": "1.0.0",
    "plan_id": "plan-1",
    "request_type": "",
    "num_solution": 1,
    "locations": {
      "customer": {"latitude": 32.8, "longitude": -96.8, "country": "USA"}
    },
    "demands": {
      "vG": {
        "candidates": [
          {"candidate_id": "dfw-1", "location_id": "DFW", "latitude": 32.9, "longitude": -96.9, "cost": 5},
          {"candidate_id": "atl-1", "location_id": "ATL", "latitude": 33.7, "longitude": -84.4, "cost": 1},
          {"candidate_id": "iad-1", "location_id": "IAD", "latitude": 38.9, "longitude": -77.4, "cost": 3}
        ]
      }
    },
    "objective": {
      "goal": "min",
      "operation": "sum",
      "operands": [
        {"operation": "product", "weight": 1.0, "function": "distance_between",
         "function_param": ["customer", "vG"]}
      ]
    },
    "constraints": {
      "close-enough": {
        "type": "access_distance",
        "demands": ["vG"],
        "properties": {"location": "customer", "distance": "< 2000 km"}
      }
    }
  }
}`

func TestParseTranslation(t *testing.T) {
	req, err := Parse(json.RawMessage(sampleTranslation), testEngine(&fakeDataClient{}))
	require.NoError(t, err)

	assert.Equal(t, "plan-1", req.PlanID)
	assert.Equal(t, 1, req.NumSolutions)
	require.Contains(t, req.Demands, "vG")
	assert.Len(t, req.Demands["vG"].Resources, 3)

	// node_id stamps each candidate occurrence with its demand.
	assert.Equal(t, "vG|dfw-1", req.Demands["vG"].Resources["dfw-1"].Str(models.AttrNodeID))

	require.Contains(t, req.Constraints, "close-enough")
	dist, ok := req.Constraints["close-enough"].(*AccessDistance)
	require.True(t, ok)
	assert.Equal(t, OpLT, dist.Threshold.Operator)
	assert.Equal(t, 2000.0, dist.Threshold.Value)

	require.NotNil(t, req.Objective)
	assert.Equal(t, GoalMin, req.Objective.Goal)
	require.Len(t, req.Objective.Operands, 1)
	op := req.Objective.Operands[0]
	require.Len(t, op.Endpoints, 2)
	assert.NotNil(t, op.Endpoints[0].Location)
	assert.Equal(t, "vG", op.Endpoints[1].Demand)
}

func TestParseAndSolveEndToEnd(t *testing.T) {
	// ATL is farther from the Dallas-area customer than DFW, but DFW's
	// placement cost dominates: 32.9/-96.9 is ~15 km away at cost 5,
	// ATL ~1160 km at cost 1, IAD ~1900 km at cost 3. The distance term
	// outweighs cost here, so DFW wins the min objective.
	req, err := Parse(json.RawMessage(sampleTranslation), testEngine(&fakeDataClient{}))
	require.NoError(t, err)

	opt := &Optimizer{Timeout: time.Second}
	solutions := opt.Solve(context.Background(), req)
	require.Len(t, solutions, 1)
	assert.Equal(t, "dfw-1", solutions[0]["vG"].ID())
}

func TestParseNumSolutionsAll(t *testing.T) {
	doc := `{"conductor_solver": {"plan_id": "p", "num_solution": "all",
		"demands": {"d": {"candidates": [{"candidate_id": "a"}]}}}}`
	req, err := Parse(json.RawMessage(doc), testEngine(&fakeDataClient{}))
	require.NoError(t, err)
	assert.Equal(t, 0, req.NumSolutions, `"all" means unbounded`)
}

func TestParseNumSolutionsDefault(t *testing.T) {
	doc := `{"conductor_solver": {"plan_id": "p",
		"demands": {"d": {"candidates": [{"candidate_id": "a"}]}}}}`
	req, err := Parse(json.RawMessage(doc), testEngine(&fakeDataClient{}))
	require.NoError(t, err)
	assert.Equal(t, 1, req.NumSolutions)
}

func TestParseThresholdZeroRange(t *testing.T) {
	doc := `{"conductor_solver": {"plan_id": "p",
		"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
		"constraints": {
			"zero": {"type": "threshold", "demands": ["d"],
				"properties": {"evaluate": [{"attribute": "errors", "min": 0, "max": 0}]}}
		}}}`
	req, err := Parse(json.RawMessage(doc), testEngine(&fakeDataClient{}))
	require.NoError(t, err)
	tc, ok := req.Constraints["zero"].(*ThresholdConstraint)
	require.True(t, ok)
	require.Len(t, tc.Checks, 1)
	assert.True(t, tc.Checks[0].Threshold.HasRange, "explicit 0/0 bounds are a range")
	assert.True(t, tc.Checks[0].Threshold.Match(0))
	assert.False(t, tc.Checks[0].Threshold.Match(1))
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"no demands": `{"conductor_solver": {"plan_id": "p"}}`,
		"candidate without id": `{"conductor_solver": {"plan_id": "p",
			"demands": {"d": {"candidates": [{"cost": 1}]}}}}`,
		"constraint names unknown demand": `{"conductor_solver": {"plan_id": "p",
			"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
			"constraints": {"c": {"type": "attribute", "demands": ["ghost"]}}}}`,
		"inventory_group arity": `{"conductor_solver": {"plan_id": "p",
			"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
			"constraints": {"c": {"type": "inventory_group", "demands": ["d"]}}}}`,
		"unknown constraint type": `{"conductor_solver": {"plan_id": "p",
			"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
			"constraints": {"c": {"type": "teleport", "demands": ["d"]}}}}`,
		"unknown objective goal": `{"conductor_solver": {"plan_id": "p",
			"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
			"objective": {"goal": "sideways", "operands": [{"function": "cost"}]}}}`,
		"bad endpoint": `{"conductor_solver": {"plan_id": "p",
			"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
			"objective": {"goal": "min", "operands": [
				{"function": "distance_between", "function_param": ["nowhere", "d"]}]}}}`,
	}
	for name, doc := range cases {
		_, err := Parse(json.RawMessage(doc), testEngine(&fakeDataClient{}))
		assert.Error(t, err, name)
	}
}

func TestParseConstraintOrderWithinDemand(t *testing.T) {
	doc := `{"conductor_solver": {"plan_id": "p",
		"demands": {"d": {"candidates": [{"candidate_id": "a"}]}},
		"constraints": {
			"expensive": {"type": "threshold", "demands": ["d"],
				"properties": {"evaluate": [{"attribute": "x", "threshold": "< 10"}]}},
			"cheap": {"type": "zone", "demands": ["d"],
				"properties": {"qualifier": "same", "category": "region"}}
		}}}`
	req, err := Parse(json.RawMessage(doc), testEngine(&fakeDataClient{}))
	require.NoError(t, err)

	chain := req.Demands["d"].Constraints
	require.Len(t, chain, 2)
	assert.Equal(t, "cheap", chain[0].Name(), "zone outranks threshold")
	assert.Equal(t, "expensive", chain[1].Name())
}
