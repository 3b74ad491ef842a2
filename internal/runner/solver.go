package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/solver"
	"github.com/navarch/homing/internal/store"
)

// SolverWorker advances plans translated -> solving -> solved, or to
// "not found" when the search space is exhausted.
type SolverWorker struct {
	store  store.Store
	engine *data.Engine
	// searchTimeout bounds a single search. Kept below the plan-level
	// ReclaimTimeout so a slow search finishes (or gives up) before its
	// plan is taken for orphaned.
	searchTimeout time.Duration
	cfg           Config
}

func NewSolverWorker(st store.Store, engine *data.Engine, searchTimeout time.Duration, cfg Config) *SolverWorker {
	cfg = cfg.withDefaults("solver")
	if searchTimeout <= 0 || searchTimeout >= cfg.ReclaimTimeout {
		searchTimeout = cfg.ReclaimTimeout / 2
	}
	return &SolverWorker{store: st, engine: engine, searchTimeout: searchTimeout, cfg: cfg}
}

func (w *SolverWorker) Run(ctx context.Context) {
	run(ctx, w, w.cfg)
}

func (w *SolverWorker) Recover(ctx context.Context) error {
	n, err := w.store.ResetOwnedPlans(ctx, models.StatusSolving, models.StatusTranslated)
	if err != nil {
		return err
	}
	if n > 0 {
		w.cfg.Logger.Printf("recovered %d plans stuck solving", n)
	}
	return nil
}

func (w *SolverWorker) ProcessNext(ctx context.Context) (bool, error) {
	if reclaimed, err := w.reclaimStuck(ctx); err != nil || reclaimed {
		return reclaimed, err
	}

	plans, err := w.store.ListPlansByStatus(ctx, models.StatusTranslated, 10)
	if err != nil {
		return false, fmt.Errorf("list translated plans: %w", err)
	}
	for _, plan := range plans {
		claimed, err := advance(ctx, w.store, store.PlanTransition{
			ID:          plan.ID,
			FromStatus:  models.StatusTranslated,
			ToStatus:    models.StatusSolving,
			Message:     "solving",
			Stage:       store.StageSolver,
			Owner:       w.cfg.Owner,
			BumpCounter: true,
		})
		if err != nil {
			return false, err
		}
		if !claimed {
			continue
		}
		return true, w.solve(ctx, plan)
	}
	return false, nil
}

// solve runs the search for a plan just moved to solving. plan is the
// pre-claim snapshot; its counter is one behind.
func (w *SolverWorker) solve(ctx context.Context, plan models.Plan) error {
	if plan.SolverCounter+1 > w.cfg.MaxCounter {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusSolving,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("solver retry limit reached (%d)", w.cfg.MaxCounter),
			Stage:      store.StageSolver,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	req, perr := solver.Parse(plan.Translation, w.engine)
	if perr != nil {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusSolving,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("solver rejected translation: %v", perr),
			Stage:      store.StageSolver,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	opt := &solver.Optimizer{Timeout: w.timeoutFor(plan)}
	decisions := opt.Solve(ctx, req)
	if len(decisions) == 0 {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusSolving,
			ToStatus:   models.StatusNotFound,
			Message:    "no solution satisfies the constraints",
			Stage:      store.StageSolver,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	raw, merr := json.Marshal(buildSolution(decisions))
	if merr != nil {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusSolving,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("encode solution: %v", merr),
			Stage:      store.StageSolver,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	_, err := advance(ctx, w.store, store.PlanTransition{
		ID:         plan.ID,
		FromStatus: models.StatusSolving,
		ToStatus:   models.StatusSolved,
		Message:    fmt.Sprintf("solved with %d recommendation sets", len(decisions)),
		Stage:      store.StageSolver,
		Owner:      w.cfg.Owner,
		Solution:   raw,
	})
	return err
}

// timeoutFor honors a per-plan timeout when one was requested, never
// exceeding the worker's own search budget.
func (w *SolverWorker) timeoutFor(plan models.Plan) time.Duration {
	if plan.Timeout > 0 {
		if d := time.Duration(plan.Timeout) * time.Second; d < w.searchTimeout {
			return d
		}
	}
	return w.searchTimeout
}

func buildSolution(decisions []map[string]models.Candidate) models.Solution {
	var sol models.Solution
	for _, decided := range decisions {
		recs := make(map[string]models.Recommendation, len(decided))
		for demand, cand := range decided {
			recs[demand] = models.Recommendation{
				InventoryProvider: cand.InventoryProvider(),
				ServiceResourceID: cand.Str(models.AttrServiceResourceID),
				Candidate:         cand,
				Attributes: map[string]interface{}{
					models.AttrLocationID:    cand.LocationID(),
					models.AttrInventoryType: cand.Str(models.AttrInventoryType),
				},
			}
		}
		sol.Recommendations = append(sol.Recommendations, recs)
	}
	return sol
}

func (w *SolverWorker) reclaimStuck(ctx context.Context) (bool, error) {
	cutoff := time.Now().Add(-w.cfg.ReclaimTimeout)
	stuck, err := w.store.ListStuckPlans(ctx, models.StatusSolving, cutoff, 10)
	if err != nil {
		return false, fmt.Errorf("list stuck solving plans: %w", err)
	}
	for _, plan := range stuck {
		applied, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusSolving,
			ToStatus:   models.StatusTranslated,
			Message:    fmt.Sprintf("reclaimed from stale owner %s", plan.SolverOwner),
		})
		if err != nil {
			return false, err
		}
		if applied {
			w.cfg.Logger.Printf("reclaimed plan %s from %s", plan.ID, plan.SolverOwner)
			return true, nil
		}
	}
	return false, nil
}
