package data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/navarch/homing/internal/messaging"
	"github.com/navarch/homing/internal/models"
)

// ResolvedLocation is the coordinate answer for a host name or CLLI code.
type ResolvedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
}

// FilterArgs is the common request shape for allow-list style candidate
// filters: a candidate batch plus a requirement spec; the response keeps
// only the candidates the inventory side accepts.
type FilterArgs struct {
	DemandName string                 `json:"demand_name"`
	Candidates []models.Candidate     `json:"candidate_list"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Client is the Data-service surface consumed by the translator, solver,
// and reservation workers. All calls are synchronous over the shared-store
// messaging fabric; every call carries plan correlation.
type Client interface {
	ResolveDemands(ctx context.Context, planID string, demands json.RawMessage) (map[string][]models.Candidate, error)
	ResolveLocation(ctx context.Context, planID string, hostName string) (ResolvedLocation, error)
	GetCandidateLocation(ctx context.Context, planID string, candidate models.Candidate) (float64, float64, error)
	GetCandidateZone(ctx context.Context, planID string, candidate models.Candidate, category string) (string, error)
	GetCandidatesFromService(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error)
	GetCandidatesByAttributes(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error)
	GetCandidatesWithHPA(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error)
	GetCandidatesWithVimCapacity(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error)
	GetInventoryGroupCandidates(ctx context.Context, planID string, demandName string, partner models.Candidate) ([]models.Candidate, error)
	CallReservationOperation(ctx context.Context, planID string, method string, candidates []models.Candidate, properties map[string]interface{}) (bool, error)
}

// RPCClient implements Client over the poll-based messaging fabric.
type RPCClient struct {
	rpc *messaging.Client
}

func NewRPCClient(rpc *messaging.Client) *RPCClient {
	return &RPCClient{rpc: rpc}
}

func (c *RPCClient) ResolveDemands(ctx context.Context, planID string, demands json.RawMessage) (map[string][]models.Candidate, error) {
	args := map[string]interface{}{"demands": demands}
	var resp struct {
		ResolvedDemands map[string][]models.Candidate `json:"resolved_demands"`
	}
	if err := c.rpc.Call(ctx, planID, "resolve_demands", args, &resp); err != nil {
		return nil, fmt.Errorf("resolve demands: %w", err)
	}
	return resp.ResolvedDemands, nil
}

func (c *RPCClient) ResolveLocation(ctx context.Context, planID string, hostName string) (ResolvedLocation, error) {
	args := map[string]interface{}{"host_name": hostName}
	var resp struct {
		ResolvedLocation ResolvedLocation `json:"resolved_location"`
	}
	if err := c.rpc.Call(ctx, planID, "resolve_location", args, &resp); err != nil {
		return ResolvedLocation{}, fmt.Errorf("resolve location %s: %w", hostName, err)
	}
	return resp.ResolvedLocation, nil
}

func (c *RPCClient) GetCandidateLocation(ctx context.Context, planID string, candidate models.Candidate) (float64, float64, error) {
	args := map[string]interface{}{"candidate": candidate}
	var resp struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := c.rpc.Call(ctx, planID, "get_candidate_location", args, &resp); err != nil {
		return 0, 0, fmt.Errorf("candidate location %s: %w", candidate.ID(), err)
	}
	return resp.Latitude, resp.Longitude, nil
}

func (c *RPCClient) GetCandidateZone(ctx context.Context, planID string, candidate models.Candidate, category string) (string, error) {
	args := map[string]interface{}{"candidate": candidate, "category": category}
	var resp struct {
		Zone string `json:"zone"`
	}
	if err := c.rpc.Call(ctx, planID, "get_candidate_zone", args, &resp); err != nil {
		return "", fmt.Errorf("candidate zone %s/%s: %w", candidate.ID(), category, err)
	}
	return resp.Zone, nil
}

func (c *RPCClient) filterCall(ctx context.Context, planID, method string, args FilterArgs) ([]models.Candidate, error) {
	var resp struct {
		Candidates []models.Candidate `json:"candidate_list"`
	}
	if err := c.rpc.Call(ctx, planID, method, args, &resp); err != nil {
		return nil, fmt.Errorf("%s for %s: %w", method, args.DemandName, err)
	}
	return resp.Candidates, nil
}

func (c *RPCClient) GetCandidatesFromService(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error) {
	return c.filterCall(ctx, planID, "get_candidates_from_service", args)
}

func (c *RPCClient) GetCandidatesByAttributes(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error) {
	return c.filterCall(ctx, planID, "get_candidates_by_attributes", args)
}

func (c *RPCClient) GetCandidatesWithHPA(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error) {
	return c.filterCall(ctx, planID, "get_candidates_with_hpa", args)
}

func (c *RPCClient) GetCandidatesWithVimCapacity(ctx context.Context, planID string, args FilterArgs) ([]models.Candidate, error) {
	return c.filterCall(ctx, planID, "get_candidates_with_vim_capacity", args)
}

func (c *RPCClient) GetInventoryGroupCandidates(ctx context.Context, planID string, demandName string, partner models.Candidate) ([]models.Candidate, error) {
	args := map[string]interface{}{
		"demand_name": demandName,
		"resolved":    partner,
	}
	var resp struct {
		Candidates []models.Candidate `json:"candidate_list"`
	}
	if err := c.rpc.Call(ctx, planID, "get_inventory_group_candidates", args, &resp); err != nil {
		return nil, fmt.Errorf("inventory group candidates for %s: %w", demandName, err)
	}
	return resp.Candidates, nil
}

func (c *RPCClient) CallReservationOperation(ctx context.Context, planID string, method string, candidates []models.Candidate, properties map[string]interface{}) (bool, error) {
	args := map[string]interface{}{
		"method":         method,
		"candidate_list": candidates,
		"properties":     properties,
	}
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := c.rpc.Call(ctx, planID, "call_reservation_operation", args, &resp); err != nil {
		return false, fmt.Errorf("reservation %s: %w", method, err)
	}
	return resp.OK, nil
}
