package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
)

// Reservation operations issued against external controllers.
const (
	opReserve = "reserve"
	opRelease = "release"
)

// ErrRollbackFailed marks a reservation failure whose compensating
// release also failed. The plan must go to error; a plain reservation
// failure with a clean rollback goes back to translated for another try.
var ErrRollbackFailed = errors.New("reservation rollback failed")

// Service reserves every candidate of a solution against its controller,
// releasing already-made reservations in reverse order when a later one
// fails.
type Service struct {
	client data.Client
}

func New(client data.Client) *Service {
	return &Service{client: client}
}

// Reserve walks the solution's recommendations in order. On a reservation
// failure it rolls back and reports whether the rollback succeeded.
func (s *Service) Reserve(ctx context.Context, planID string, solution models.Solution, properties map[string]interface{}) error {
	var reserved []models.Candidate
	for _, recommendation := range solution.Recommendations {
		for demandName, rec := range recommendation {
			ok, err := s.client.CallReservationOperation(ctx, planID, opReserve, []models.Candidate{rec.Candidate}, properties)
			if err == nil && ok {
				reserved = append(reserved, rec.Candidate)
				continue
			}
			if err != nil {
				log.Printf("[reservation] reserve %s for %s: %v", rec.Candidate.ID(), demandName, err)
			}
			if rbErr := s.rollback(ctx, planID, reserved, properties); rbErr != nil {
				return fmt.Errorf("%w: after failing to reserve %s: %v", ErrRollbackFailed, rec.Candidate.ID(), rbErr)
			}
			return fmt.Errorf("reserve %s for demand %s failed", rec.Candidate.ID(), demandName)
		}
	}
	return nil
}

// rollback releases reservations most-recent first.
func (s *Service) rollback(ctx context.Context, planID string, reserved []models.Candidate, properties map[string]interface{}) error {
	for i := len(reserved) - 1; i >= 0; i-- {
		ok, err := s.client.CallReservationOperation(ctx, planID, opRelease, []models.Candidate{reserved[i]}, properties)
		if err != nil {
			return fmt.Errorf("release %s: %w", reserved[i].ID(), err)
		}
		if !ok {
			return fmt.Errorf("release %s rejected", reserved[i].ID())
		}
	}
	return nil
}
