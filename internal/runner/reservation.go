package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/reservation"
	"github.com/navarch/homing/internal/store"
)

// ReservationWorker advances plans solved -> reserving -> done. A failed
// reservation with a clean rollback sends the plan back to translated for
// a fresh solve; a failed rollback is unrecoverable and goes to error.
type ReservationWorker struct {
	store   store.Store
	service *reservation.Service
	cfg     Config
}

func NewReservationWorker(st store.Store, svc *reservation.Service, cfg Config) *ReservationWorker {
	return &ReservationWorker{store: st, service: svc, cfg: cfg.withDefaults("reservation")}
}

func (w *ReservationWorker) Run(ctx context.Context) {
	run(ctx, w, w.cfg)
}

func (w *ReservationWorker) Recover(ctx context.Context) error {
	n, err := w.store.ResetOwnedPlans(ctx, models.StatusReserving, models.StatusSolved)
	if err != nil {
		return err
	}
	if n > 0 {
		w.cfg.Logger.Printf("recovered %d plans stuck reserving", n)
	}
	return nil
}

func (w *ReservationWorker) ProcessNext(ctx context.Context) (bool, error) {
	if reclaimed, err := w.reclaimStuck(ctx); err != nil || reclaimed {
		return reclaimed, err
	}

	plans, err := w.store.ListPlansByStatus(ctx, models.StatusSolved, 10)
	if err != nil {
		return false, fmt.Errorf("list solved plans: %w", err)
	}
	for _, plan := range plans {
		claimed, err := advance(ctx, w.store, store.PlanTransition{
			ID:          plan.ID,
			FromStatus:  models.StatusSolved,
			ToStatus:    models.StatusReserving,
			Message:     "reserving",
			Stage:       store.StageReservation,
			Owner:       w.cfg.Owner,
			BumpCounter: true,
		})
		if err != nil {
			return false, err
		}
		if !claimed {
			continue
		}
		return true, w.reserve(ctx, plan)
	}
	return false, nil
}

// reserve executes the reservation for a plan just moved to reserving.
// plan is the pre-claim snapshot; its counter is one behind.
func (w *ReservationWorker) reserve(ctx context.Context, plan models.Plan) error {
	if plan.ReservationCounter+1 > w.cfg.MaxCounter {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusReserving,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("reservation retry limit reached (%d)", w.cfg.MaxCounter),
			Stage:      store.StageReservation,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	var solution models.Solution
	if derr := json.Unmarshal(plan.Solution, &solution); derr != nil {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusReserving,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("decode solution: %v", derr),
			Stage:      store.StageReservation,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	rerr := w.service.Reserve(ctx, plan.ID.String(), solution, nil)
	if rerr == nil {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusReserving,
			ToStatus:   models.StatusDone,
			Message:    "reservations complete",
			Stage:      store.StageReservation,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	if errors.Is(rerr, reservation.ErrRollbackFailed) {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusReserving,
			ToStatus:   models.StatusError,
			Message:    rerr.Error(),
			Stage:      store.StageReservation,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	// Rolled back cleanly: the solved candidates are contested, so the
	// stale solution is dropped and the plan is solved again from its
	// translation.
	w.cfg.Logger.Printf("plan %s reservation failed, retrying from translated: %v", plan.ID, rerr)
	_, err := advance(ctx, w.store, store.PlanTransition{
		ID:         plan.ID,
		FromStatus: models.StatusReserving,
		ToStatus:   models.StatusTranslated,
		Message:    fmt.Sprintf("reservation failed: %v", rerr),
		Stage:      store.StageReservation,
		Owner:      w.cfg.Owner,
	})
	return err
}

func (w *ReservationWorker) reclaimStuck(ctx context.Context) (bool, error) {
	cutoff := time.Now().Add(-w.cfg.ReclaimTimeout)
	stuck, err := w.store.ListStuckPlans(ctx, models.StatusReserving, cutoff, 10)
	if err != nil {
		return false, fmt.Errorf("list stuck reserving plans: %w", err)
	}
	for _, plan := range stuck {
		applied, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusReserving,
			ToStatus:   models.StatusSolved,
			Message:    fmt.Sprintf("reclaimed from stale owner %s", plan.ReservationOwner),
		})
		if err != nil {
			return false, err
		}
		if applied {
			w.cfg.Logger.Printf("reclaimed plan %s from %s", plan.ID, plan.ReservationOwner)
			return true, nil
		}
	}
	return false, nil
}
