package solver

import (
	"encoding/json"
	"fmt"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
)

// translation is the wire form produced by the translator.
type translation struct {
	ConductorSolver struct {
		Version     string                    `json:"version"`
		PlanID      string                    `json:"plan_id"`
		RequestType string                    `json:"request_type"`
		NumSolution interface{}               `json:"num_solution"`
		Locations   map[string]locationSpec   `json:"locations"`
		Demands     map[string]demandSpec     `json:"demands"`
		Objective   *objectiveSpec            `json:"objective"`
		Constraints map[string]constraintSpec `json:"constraints"`
	} `json:"conductor_solver"`
}

type locationSpec struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
}

type demandSpec struct {
	Candidates []models.Candidate `json:"candidates"`
}

type objectiveSpec struct {
	Goal      string        `json:"goal"`
	Operation string        `json:"operation"`
	Operands  []operandSpec `json:"operands"`
}

type operandSpec struct {
	Operation     string          `json:"operation"`
	Weight        float64         `json:"weight"`
	Function      string          `json:"function"`
	FunctionParam json.RawMessage `json:"function_param"`
}

type constraintSpec struct {
	Type       string                 `json:"type"`
	Demands    []string               `json:"demands"`
	Properties map[string]interface{} `json:"properties"`
}

// Parse turns a translation document into a solver-ready request. All
// failures here are input errors: surfaced once, never retried.
func Parse(raw json.RawMessage, engine *data.Engine) (*Request, error) {
	var t translation
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode translation: %w", err)
	}
	cs := t.ConductorSolver
	if len(cs.Demands) == 0 {
		return nil, fmt.Errorf("translation has no demands")
	}

	req := &Request{
		PlanID:      cs.PlanID,
		RequestType: cs.RequestType,
		Demands:     map[string]*Demand{},
		Locations:   map[string]Location{},
		Constraints: map[string]Constraint{},
		Engine:      engine,
	}
	req.NumSolutions = parseNumSolutions(cs.NumSolution)

	for name, spec := range cs.Locations {
		req.Locations[name] = Location{
			Name:      name,
			Latitude:  spec.Latitude,
			Longitude: spec.Longitude,
			Country:   spec.Country,
		}
	}

	for name, spec := range cs.Demands {
		demand := &Demand{Name: name, Resources: map[string]models.Candidate{}}
		for _, cand := range spec.Candidates {
			id := cand.ID()
			if id == "" {
				return nil, fmt.Errorf("demand %s has a candidate without candidate_id", name)
			}
			c := cand.Clone()
			// node_id ties a candidate occurrence to its demand for
			// traceability; assigned once per demand.
			c[models.AttrNodeID] = name + "|" + id
			demand.Resources[id] = c
		}
		req.Demands[name] = demand
	}

	for name, spec := range cs.Constraints {
		constraint, err := buildConstraint(name, spec, req)
		if err != nil {
			return nil, err
		}
		req.Constraints[name] = constraint
		for _, demandName := range spec.Demands {
			demand, ok := req.Demands[demandName]
			if !ok {
				return nil, fmt.Errorf("constraint %s names unknown demand %s", name, demandName)
			}
			demand.Constraints = append(demand.Constraints, constraint)
		}
	}
	for _, demand := range req.Demands {
		sortConstraints(demand.Constraints)
	}

	if cs.Objective != nil && len(cs.Objective.Operands) > 0 {
		objective, err := buildObjective(cs.Objective, req)
		if err != nil {
			return nil, err
		}
		req.Objective = objective
	}
	return req, nil
}

func parseNumSolutions(v interface{}) int {
	switch n := v.(type) {
	case nil:
		return 1
	case string:
		// "all" and anything unparseable both mean unbounded.
		return 0
	case float64:
		if n < 1 {
			return 1
		}
		return int(n)
	}
	return 1
}

func buildConstraint(name string, spec constraintSpec, req *Request) (Constraint, error) {
	if len(spec.Demands) == 0 {
		return nil, fmt.Errorf("constraint %s names no demands", name)
	}
	props := spec.Properties

	switch spec.Type {
	case "access_distance", "distance_to_location":
		locName, _ := props["location"].(string)
		location, ok := req.Locations[locName]
		if !ok {
			return nil, fmt.Errorf("constraint %s: unknown location %q", name, locName)
		}
		distSpec, _ := props["distance"].(string)
		threshold, err := ParseThreshold(distSpec, OpLTE)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", name, err)
		}
		return NewAccessDistance(name, spec.Demands, location, threshold), nil

	case "zone":
		qualifier, _ := props["qualifier"].(string)
		if qualifier != QualifierSame && qualifier != QualifierDifferent {
			return nil, fmt.Errorf("constraint %s: qualifier must be same or different, got %q", name, qualifier)
		}
		category, _ := props["category"].(string)
		if category == "" {
			return nil, fmt.Errorf("constraint %s: missing category", name)
		}
		var location *Location
		if locName, ok := props["location"].(string); ok && locName != "" {
			loc, found := req.Locations[locName]
			if !found {
				return nil, fmt.Errorf("constraint %s: unknown location %q", name, locName)
			}
			location = &loc
		}
		return NewZone(name, spec.Demands, qualifier, category, location), nil

	case "inventory_group":
		if len(spec.Demands) != 2 {
			return nil, fmt.Errorf("constraint %s: inventory_group spans exactly two demands", name)
		}
		return NewInventoryGroup(name, spec.Demands), nil

	case "attribute":
		return NewAttribute(name, spec.Demands, props), nil

	case "hpa":
		return NewHPA(name, spec.Demands, props), nil

	case "vim_fit":
		return NewVimFit(name, spec.Demands, props), nil

	case "instance_fit", "region_fit", "service":
		return NewServiceFit(name, spec.Type, spec.Demands, props), nil

	case "threshold":
		checks, err := parseThresholdChecks(name, props)
		if err != nil {
			return nil, err
		}
		return NewThresholdConstraint(name, spec.Demands, checks), nil
	}
	return nil, fmt.Errorf("constraint %s: unknown type %q", name, spec.Type)
}

func parseThresholdChecks(name string, props map[string]interface{}) ([]ThresholdCheck, error) {
	rawChecks, ok := props["evaluate"].([]interface{})
	if !ok || len(rawChecks) == 0 {
		return nil, fmt.Errorf("constraint %s: threshold requires an evaluate list", name)
	}
	var checks []ThresholdCheck
	for _, raw := range rawChecks {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("constraint %s: malformed evaluate entry", name)
		}
		attr, _ := entry["attribute"].(string)
		if attr == "" {
			return nil, fmt.Errorf("constraint %s: evaluate entry missing attribute", name)
		}
		check := ThresholdCheck{Attribute: attr}
		if spec, ok := entry["threshold"].(string); ok {
			t, err := ParseThreshold(spec, OpLTE)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", name, err)
			}
			check.Threshold = t
		}
		// An explicit min/max pair is a range, zero bounds included.
		min, hasMin := toFloat(entry["min"])
		max, hasMax := toFloat(entry["max"])
		if hasMin && hasMax {
			check.Threshold = check.Threshold.WithRange(min, max)
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func buildObjective(spec *objectiveSpec, req *Request) (*Objective, error) {
	switch spec.Goal {
	case GoalMin, GoalMax, GoalMinAIC, GoalNone:
	default:
		return nil, fmt.Errorf("objective: unknown goal %q", spec.Goal)
	}
	objective := &Objective{
		Goal:      spec.Goal,
		Operation: spec.Operation,
	}
	for i, opSpec := range spec.Operands {
		operand, err := buildOperand(i, opSpec, req)
		if err != nil {
			return nil, err
		}
		objective.Operands = append(objective.Operands, operand)
	}
	return objective, nil
}

func buildOperand(i int, spec operandSpec, req *Request) (Operand, error) {
	op := Operand{
		Operation: spec.Operation,
		Weight:    spec.Weight,
		Function:  spec.Function,
	}
	switch spec.Function {
	case FuncDistanceBetween, FuncLatencyBetween:
		var params []string
		if err := json.Unmarshal(spec.FunctionParam, &params); err != nil || len(params) != 2 {
			return Operand{}, fmt.Errorf("operand %d: %s needs a two-element function_param", i, spec.Function)
		}
		for _, param := range params {
			ep, err := resolveEndpointParam(param, req)
			if err != nil {
				return Operand{}, fmt.Errorf("operand %d: %w", i, err)
			}
			op.Endpoints = append(op.Endpoints, ep)
		}
	case FuncAttribute:
		var params struct {
			Demand    string `json:"demand"`
			Attribute string `json:"attribute"`
		}
		if err := json.Unmarshal(spec.FunctionParam, &params); err != nil || params.Demand == "" || params.Attribute == "" {
			return Operand{}, fmt.Errorf("operand %d: attribute needs demand and attribute params", i)
		}
		op.Demand = params.Demand
		op.Attribute = params.Attribute
	case FuncAICVersion, FuncCost:
		var demand string
		if len(spec.FunctionParam) > 0 {
			if err := json.Unmarshal(spec.FunctionParam, &demand); err != nil {
				return Operand{}, fmt.Errorf("operand %d: %s expects a demand name param", i, spec.Function)
			}
		}
		op.Demand = demand
	case FuncHPAScore:
		// Scores over all decided candidates; no params.
	default:
		return Operand{}, fmt.Errorf("operand %d: unknown function %q", i, spec.Function)
	}
	return op, nil
}

func resolveEndpointParam(param string, req *Request) (Endpoint, error) {
	if loc, ok := req.Locations[param]; ok {
		l := loc
		return Endpoint{Location: &l}, nil
	}
	if _, ok := req.Demands[param]; ok {
		return Endpoint{Demand: param}, nil
	}
	return Endpoint{}, fmt.Errorf("endpoint %q is neither a location nor a demand", param)
}
