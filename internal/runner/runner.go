package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/navarch/homing/internal/store"
)

// Config is shared by all worker pools.
type Config struct {
	// PollInterval between scans when no work was found.
	PollInterval time.Duration
	// Owner identifies this worker in the plan's owner columns. Defaults
	// to the hostname.
	Owner string
	// MaxCounter caps the per-stage retry counters; a plan whose counter
	// reaches the cap goes to error.
	MaxCounter int
	// ReclaimTimeout is the plan-level stuck-ownership timeout: a plan
	// sitting in this worker's in-progress status longer than this is
	// assumed orphaned by a crashed owner and reclaimed. Must exceed any
	// worker-internal budget or a still-working owner can be wrongly
	// reclaimed.
	ReclaimTimeout time.Duration
	// Concurrent marks an active-active deployment. The startup recovery
	// sweep is skipped; the timeout-based reclaim is the only recovery
	// path.
	Concurrent bool
	Logger     *log.Logger
}

func (c Config) withDefaults(prefix string) Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Owner == "" {
		host, _ := os.Hostname()
		c.Owner = host
	}
	if c.MaxCounter <= 0 {
		c.MaxCounter = 1
	}
	if c.ReclaimTimeout <= 0 {
		c.ReclaimTimeout = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, "["+prefix+"] ", log.LstdFlags)
	}
	return c
}

// worker is one polling control loop: a recovery sweep at startup, then
// claim-process-repeat until the context is cancelled.
type worker interface {
	// Recover resets plans stuck in this worker's in-progress status
	// (non-concurrent deployments only).
	Recover(ctx context.Context) error
	// ProcessNext claims and processes one plan, returning whether work
	// was done.
	ProcessNext(ctx context.Context) (bool, error)
}

// run drives a worker loop the same way for all three pools.
func run(ctx context.Context, w worker, cfg Config) {
	if !cfg.Concurrent {
		if err := w.Recover(ctx); err != nil {
			cfg.Logger.Printf("startup recovery: %v", err)
		}
	}
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			cfg.Logger.Printf("process plan: %v", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.PollInterval):
			}
		}
	}
}

// advance applies a CAS transition, folding the tri-state outcome into
// the worker idiom: a condition failure means another worker won the race
// and this plan is simply skipped for the current poll cycle.
func advance(ctx context.Context, st store.Store, t store.PlanTransition) (bool, error) {
	result, err := st.AdvancePlan(ctx, t)
	switch result {
	case store.CASApplied:
		return true, nil
	case store.CASConditionFailed:
		return false, nil
	default:
		return false, fmt.Errorf("advance %s %s -> %s: %w", t.ID, t.FromStatus, t.ToStatus, err)
	}
}
