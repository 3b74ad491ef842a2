package solver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
)

// fakeDataClient implements data.Client with canned answers; unset hooks
// fail loudly so a test never silently depends on default behavior.
type fakeDataClient struct {
	zones     map[string]string // candidate_id -> zone
	locations map[string][2]float64
	grouped   map[string][]string // partner candidate_id -> paired ids
	allowed   []string            // ids every filter call returns

	reservations   []string // "method:candidate_id" in call order
	failReserveIDs map[string]bool
	failReleaseIDs map[string]bool
}

func (f *fakeDataClient) ResolveDemands(ctx context.Context, planID string, demands json.RawMessage) (map[string][]models.Candidate, error) {
	return nil, fmt.Errorf("resolve_demands not stubbed")
}

func (f *fakeDataClient) ResolveLocation(ctx context.Context, planID, hostName string) (data.ResolvedLocation, error) {
	return data.ResolvedLocation{}, fmt.Errorf("resolve_location not stubbed")
}

func (f *fakeDataClient) GetCandidateLocation(ctx context.Context, planID string, candidate models.Candidate) (float64, float64, error) {
	if ll, ok := f.locations[candidate.ID()]; ok {
		return ll[0], ll[1], nil
	}
	return 0, 0, fmt.Errorf("no location for %s", candidate.ID())
}

func (f *fakeDataClient) GetCandidateZone(ctx context.Context, planID string, candidate models.Candidate, category string) (string, error) {
	if z, ok := f.zones[candidate.ID()]; ok {
		return z, nil
	}
	return "", fmt.Errorf("no zone for %s", candidate.ID())
}

func (f *fakeDataClient) filtered(candidates []models.Candidate) []models.Candidate {
	keep := make(map[string]bool, len(f.allowed))
	for _, id := range f.allowed {
		keep[id] = true
	}
	var out []models.Candidate
	for _, c := range candidates {
		if keep[c.ID()] {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDataClient) GetCandidatesFromService(ctx context.Context, planID string, args data.FilterArgs) ([]models.Candidate, error) {
	return f.filtered(args.Candidates), nil
}

func (f *fakeDataClient) GetCandidatesByAttributes(ctx context.Context, planID string, args data.FilterArgs) ([]models.Candidate, error) {
	return f.filtered(args.Candidates), nil
}

func (f *fakeDataClient) GetCandidatesWithHPA(ctx context.Context, planID string, args data.FilterArgs) ([]models.Candidate, error) {
	return f.filtered(args.Candidates), nil
}

func (f *fakeDataClient) GetCandidatesWithVimCapacity(ctx context.Context, planID string, args data.FilterArgs) ([]models.Candidate, error) {
	return f.filtered(args.Candidates), nil
}

func (f *fakeDataClient) GetInventoryGroupCandidates(ctx context.Context, planID, demandName string, partner models.Candidate) ([]models.Candidate, error) {
	var out []models.Candidate
	for _, id := range f.grouped[partner.ID()] {
		out = append(out, models.Candidate{models.AttrCandidateID: id})
	}
	return out, nil
}

func (f *fakeDataClient) CallReservationOperation(ctx context.Context, planID, method string, candidates []models.Candidate, properties map[string]interface{}) (bool, error) {
	for _, c := range candidates {
		f.reservations = append(f.reservations, method+":"+c.ID())
		if method == "reserve" && f.failReserveIDs[c.ID()] {
			return false, nil
		}
		if method == "release" && f.failReleaseIDs[c.ID()] {
			return false, nil
		}
	}
	return true, nil
}

func testEngine(client data.Client) *data.Engine {
	return data.NewEngine(client, nil)
}

// cand builds a candidate with an id and optional extra attributes.
func cand(id string, attrs map[string]interface{}) models.Candidate {
	c := models.Candidate{models.AttrCandidateID: id}
	for k, v := range attrs {
		c[k] = v
	}
	return c
}

func demandOf(name string, candidates ...models.Candidate) *Demand {
	d := &Demand{Name: name, Resources: map[string]models.Candidate{}}
	for _, c := range candidates {
		d.Resources[c.ID()] = c
	}
	return d
}

func requestOf(demands ...*Demand) *Request {
	req := &Request{
		PlanID:      "test-plan",
		Demands:     map[string]*Demand{},
		Locations:   map[string]Location{},
		Constraints: map[string]Constraint{},
		Engine:      testEngine(&fakeDataClient{}),
	}
	for _, d := range demands {
		req.Demands[d.Name] = d
		req.DemandOrder = append(req.DemandOrder, d.Name)
	}
	return req
}
