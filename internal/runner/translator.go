package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/store"
	"github.com/navarch/homing/internal/translator"
)

// TranslatorWorker advances plans template -> translating -> translated.
type TranslatorWorker struct {
	store      store.Store
	translator *translator.Translator
	cfg        Config
}

func NewTranslatorWorker(st store.Store, tr *translator.Translator, cfg Config) *TranslatorWorker {
	return &TranslatorWorker{store: st, translator: tr, cfg: cfg.withDefaults("translator")}
}

func (w *TranslatorWorker) Run(ctx context.Context) {
	run(ctx, w, w.cfg)
}

func (w *TranslatorWorker) Recover(ctx context.Context) error {
	n, err := w.store.ResetOwnedPlans(ctx, models.StatusTranslating, models.StatusTemplate)
	if err != nil {
		return err
	}
	if n > 0 {
		w.cfg.Logger.Printf("recovered %d plans stuck translating", n)
	}
	return nil
}

func (w *TranslatorWorker) ProcessNext(ctx context.Context) (bool, error) {
	if reclaimed, err := w.reclaimStuck(ctx); err != nil || reclaimed {
		return reclaimed, err
	}

	plans, err := w.store.ListPlansByStatus(ctx, models.StatusTemplate, 10)
	if err != nil {
		return false, fmt.Errorf("list template plans: %w", err)
	}
	for _, plan := range plans {
		claimed, err := advance(ctx, w.store, store.PlanTransition{
			ID:                plan.ID,
			FromStatus:        models.StatusTemplate,
			ToStatus:          models.StatusTranslating,
			Message:           "translating",
			Stage:             store.StageTranslation,
			Owner:             w.cfg.Owner,
			BumpCounter:       true,
			SetBeginTimestamp: true,
		})
		if err != nil {
			return false, err
		}
		if !claimed {
			// Another worker advanced it first; next plan.
			continue
		}
		return true, w.translate(ctx, plan)
	}
	return false, nil
}

// translate runs the template transform for a plan just moved to
// translating. plan is the pre-claim snapshot; its counter is one behind.
func (w *TranslatorWorker) translate(ctx context.Context, plan models.Plan) error {
	if plan.TranslationCounter+1 > w.cfg.MaxCounter {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusTranslating,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("translation retry limit reached (%d)", w.cfg.MaxCounter),
			Stage:      store.StageTranslation,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	translation, terr := w.translator.Translate(ctx, plan.ID.String(), plan.Template, plan.RecommendMax)
	if terr != nil {
		_, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusTranslating,
			ToStatus:   models.StatusError,
			Message:    fmt.Sprintf("translation failed: %v", terr),
			Stage:      store.StageTranslation,
			Owner:      w.cfg.Owner,
		})
		return err
	}

	_, err := advance(ctx, w.store, store.PlanTransition{
		ID:          plan.ID,
		FromStatus:  models.StatusTranslating,
		ToStatus:    models.StatusTranslated,
		Message:     "translated",
		Stage:       store.StageTranslation,
		Owner:       w.cfg.Owner,
		Translation: translation,
	})
	return err
}

// reclaimStuck returns plans abandoned mid-translation by a crashed owner
// to the template pool.
func (w *TranslatorWorker) reclaimStuck(ctx context.Context) (bool, error) {
	cutoff := time.Now().Add(-w.cfg.ReclaimTimeout)
	stuck, err := w.store.ListStuckPlans(ctx, models.StatusTranslating, cutoff, 10)
	if err != nil {
		return false, fmt.Errorf("list stuck translating plans: %w", err)
	}
	for _, plan := range stuck {
		applied, err := advance(ctx, w.store, store.PlanTransition{
			ID:         plan.ID,
			FromStatus: models.StatusTranslating,
			ToStatus:   models.StatusTemplate,
			Message:    fmt.Sprintf("reclaimed from stale owner %s", plan.TranslationOwner),
		})
		if err != nil {
			return false, err
		}
		if applied {
			w.cfg.Logger.Printf("reclaimed plan %s from %s", plan.ID, plan.TranslationOwner)
			return true, nil
		}
	}
	return false, nil
}
