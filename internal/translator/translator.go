package translator

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/navarch/homing/internal/data"
)

// Supported homing template versions.
var supportedVersions = map[string]bool{
	"2017-10-10": true,
	"2018-02-01": true,
}

// Template is the user-facing homing request document.
type Template struct {
	Version      string                    `yaml:"homing_template_version"`
	Name         string                    `yaml:"name"`
	Parameters   map[string]interface{}    `yaml:"parameters"`
	Locations    map[string]LocationSpec   `yaml:"locations"`
	Demands      map[string]interface{}    `yaml:"demands"`
	Constraints  map[string]ConstraintSpec `yaml:"constraints"`
	Optimization *OptimizationSpec         `yaml:"optimization"`
	Reservations map[string]interface{}    `yaml:"reservations"`
	NumSolution  interface{}               `yaml:"num_solution"`
}

type LocationSpec struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Country   string   `yaml:"country"`
	// HostName, when set, is resolved to coordinates through the data
	// service.
	HostName string `yaml:"host_name"`
	CLLICode string `yaml:"clli_code"`
}

type ConstraintSpec struct {
	Type       string                 `yaml:"type"`
	Demands    []string               `yaml:"demands"`
	Properties map[string]interface{} `yaml:"properties"`
}

type OptimizationSpec struct {
	Goal      string        `yaml:"goal"`
	Operation string        `yaml:"operation"`
	Operands  []OperandSpec `yaml:"operands"`
}

type OperandSpec struct {
	Operation     string      `yaml:"operation"`
	Weight        float64     `yaml:"weight"`
	Function      string      `yaml:"function"`
	FunctionParam interface{} `yaml:"function_param"`
}

// Translator turns a raw template into the solver-ready translation. It
// is a data transform plus two resolution steps through the data service:
// location host names to coordinates, demand specs to candidate lists.
type Translator struct {
	client  data.Client
	version string
}

func New(client data.Client) *Translator {
	return &Translator{client: client, version: "1.0.0"}
}

// Translate parses and validates the YAML template and produces the
// translation document. recommendMax is the plan's requested solution
// count and only applies when the template itself carries no
// num_solution. Any failure is an input error: the plan goes to error
// status and is never retried.
func (t *Translator) Translate(ctx context.Context, planID string, rawTemplate []byte, recommendMax int) (json.RawMessage, error) {
	var tpl Template
	if err := yaml.Unmarshal(rawTemplate, &tpl); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	if tpl.Version == "" {
		return nil, fmt.Errorf("template missing homing_template_version")
	}
	if !supportedVersions[tpl.Version] {
		return nil, fmt.Errorf("unsupported homing_template_version %q", tpl.Version)
	}
	if len(tpl.Demands) == 0 {
		return nil, fmt.Errorf("template has no demands")
	}

	locations, err := t.resolveLocations(ctx, planID, tpl.Locations)
	if err != nil {
		return nil, err
	}

	demandBytes, err := json.Marshal(tpl.Demands)
	if err != nil {
		return nil, fmt.Errorf("encode demands: %w", err)
	}
	resolved, err := t.client.ResolveDemands(ctx, planID, demandBytes)
	if err != nil {
		return nil, fmt.Errorf("resolve demands: %w", err)
	}
	demands := map[string]interface{}{}
	for name := range tpl.Demands {
		candidates, ok := resolved[name]
		if !ok || len(candidates) == 0 {
			return nil, fmt.Errorf("no candidates resolved for demand %s", name)
		}
		demands[name] = map[string]interface{}{"candidates": candidates}
	}

	constraints := map[string]interface{}{}
	for name, spec := range tpl.Constraints {
		if spec.Type == "" {
			return nil, fmt.Errorf("constraint %s missing type", name)
		}
		for _, d := range spec.Demands {
			if _, ok := tpl.Demands[d]; !ok {
				return nil, fmt.Errorf("constraint %s names unknown demand %s", name, d)
			}
		}
		constraints[name] = map[string]interface{}{
			"type":       spec.Type,
			"demands":    spec.Demands,
			"properties": spec.Properties,
		}
	}

	numSolution := tpl.NumSolution
	if numSolution == nil && recommendMax > 0 {
		numSolution = recommendMax
	}
	out := map[string]interface{}{
		"version":      t.version,
		"plan_id":      planID,
		"request_type": requestType(tpl.Parameters),
		"locations":    locations,
		"demands":      demands,
		"constraints":  constraints,
		"num_solution": numSolution,
	}
	if tpl.Optimization != nil {
		operands := make([]map[string]interface{}, 0, len(tpl.Optimization.Operands))
		for _, op := range tpl.Optimization.Operands {
			operands = append(operands, map[string]interface{}{
				"operation":      op.Operation,
				"weight":         op.Weight,
				"function":       op.Function,
				"function_param": op.FunctionParam,
			})
		}
		out["objective"] = map[string]interface{}{
			"goal":      tpl.Optimization.Goal,
			"operation": tpl.Optimization.Operation,
			"operands":  operands,
		}
	}
	if len(tpl.Reservations) > 0 {
		out["reservations"] = tpl.Reservations
	}

	translation, err := json.Marshal(map[string]interface{}{"conductor_solver": out})
	if err != nil {
		return nil, fmt.Errorf("encode translation: %w", err)
	}
	return translation, nil
}

func (t *Translator) resolveLocations(ctx context.Context, planID string, specs map[string]LocationSpec) (map[string]interface{}, error) {
	locations := map[string]interface{}{}
	for name, spec := range specs {
		entry := map[string]interface{}{}
		switch {
		case spec.Latitude != nil && spec.Longitude != nil:
			entry["latitude"] = *spec.Latitude
			entry["longitude"] = *spec.Longitude
		case spec.HostName != "" || spec.CLLICode != "":
			host := spec.HostName
			if host == "" {
				host = spec.CLLICode
			}
			loc, err := t.client.ResolveLocation(ctx, planID, host)
			if err != nil {
				return nil, fmt.Errorf("resolve location %s: %w", name, err)
			}
			entry["latitude"] = loc.Latitude
			entry["longitude"] = loc.Longitude
			if spec.Country == "" && loc.Country != "" {
				entry["country"] = loc.Country
			}
		default:
			return nil, fmt.Errorf("location %s needs latitude/longitude or host_name", name)
		}
		if spec.Country != "" {
			entry["country"] = spec.Country
		}
		locations[name] = entry
	}
	return locations, nil
}

func requestType(params map[string]interface{}) string {
	if params == nil {
		return ""
	}
	if v, ok := params["request_type"].(string); ok {
		return v
	}
	return ""
}
