package solver

import (
	"context"
	"log"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
)

// filterCall is the shared shape of the allow-list constraint family:
// ship the candidate batch plus a requirement spec to the data service and
// keep only the candidates whose IDs come back.
type filterCall func(ctx context.Context, planID string, args data.FilterArgs) ([]models.Candidate, error)

func applyAllowList(ctx context.Context, name string, call filterCall, path *DecisionPath, candidates []models.Candidate, req *Request, properties map[string]interface{}) []models.Candidate {
	allowed, err := call(ctx, req.PlanID, data.FilterArgs{
		DemandName: path.CurrentDemand,
		Candidates: candidates,
		Properties: properties,
	})
	if err != nil {
		// Transient collaborator failure: no match, not a search abort.
		log.Printf("[solver] constraint %s: %v", name, err)
		return nil
	}
	ids := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		ids[c.ID()] = true
	}
	kept := make([]models.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if ids[cand.ID()] {
			kept = append(kept, cand)
		}
	}
	return kept
}

// Attribute keeps candidates whose inventory attributes satisfy the
// evaluate spec, as judged by the data service.
type Attribute struct {
	baseConstraint
	Properties map[string]interface{}
}

func NewAttribute(name string, demands []string, properties map[string]interface{}) *Attribute {
	return &Attribute{
		baseConstraint: baseConstraint{name: name, ctype: "attribute", rank: RankAttribute, demandList: demands},
		Properties:     properties,
	}
}

func (c *Attribute) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	return applyAllowList(ctx, c.name, req.Engine.Client().GetCandidatesByAttributes, path, candidates, req, c.Properties)
}

// HPA keeps candidates whose flavor capabilities match the hardware
// platform requirement spec.
type HPA struct {
	baseConstraint
	Properties map[string]interface{}
}

func NewHPA(name string, demands []string, properties map[string]interface{}) *HPA {
	return &HPA{
		baseConstraint: baseConstraint{name: name, ctype: "hpa", rank: RankHPA, demandList: demands},
		Properties:     properties,
	}
}

func (c *HPA) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	return applyAllowList(ctx, c.name, req.Engine.Client().GetCandidatesWithHPA, path, candidates, req, c.Properties)
}

// VimFit keeps candidates whose VIM reports enough capacity for the
// requested resources.
type VimFit struct {
	baseConstraint
	Properties map[string]interface{}
}

func NewVimFit(name string, demands []string, properties map[string]interface{}) *VimFit {
	return &VimFit{
		baseConstraint: baseConstraint{name: name, ctype: "vim_fit", rank: RankVimFit, demandList: demands},
		Properties:     properties,
	}
}

func (c *VimFit) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	return applyAllowList(ctx, c.name, req.Engine.Client().GetCandidatesWithVimCapacity, path, candidates, req, c.Properties)
}

// ServiceFit covers the service-controller family: instance_fit,
// region_fit, and service capacity checks all share the candidate-batch
// allow-list shape, differing only in rank and the controller named in
// properties.
type ServiceFit struct {
	baseConstraint
	Properties map[string]interface{}
}

func NewServiceFit(name, ctype string, demands []string, properties map[string]interface{}) *ServiceFit {
	rank := RankOther
	switch ctype {
	case "instance_fit":
		rank = RankInstanceFit
	case "region_fit":
		rank = RankRegionFit
	}
	return &ServiceFit{
		baseConstraint: baseConstraint{name: name, ctype: ctype, rank: rank, demandList: demands},
		Properties:     properties,
	}
}

func (c *ServiceFit) Solve(ctx context.Context, path *DecisionPath, candidates []models.Candidate, req *Request) []models.Candidate {
	return applyAllowList(ctx, c.name, req.Engine.Client().GetCandidatesFromService, path, candidates, req, c.Properties)
}
