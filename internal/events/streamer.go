package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/store"
)

// producer is the subset of Producer behavior the streamer needs.
type producer interface {
	Produce(ctx context.Context, key, value []byte) error
	Close() error
}

// StreamerConfig configures the durable DB-first event streamer.
type StreamerConfig struct {
	// BatchSize is how many events to claim per fetch.
	BatchSize int

	// PollInterval when there is no work.
	PollInterval time.Duration

	// MaxAttempts gives up on an event after this many failed publishes.
	MaxAttempts int
}

// Streamer publishes plan status transitions recorded in the store:
// claimed rows are produced to Kafka, solved plans are additionally
// archived to object storage, and the row is marked so the database
// stays the source of truth for retries.
type Streamer struct {
	store    store.Store
	producer producer
	archiver Archiver
	cfg      StreamerConfig
}

func NewStreamer(st store.Store, p producer, a Archiver, cfg StreamerConfig) *Streamer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Streamer{store: st, producer: p, archiver: a, cfg: cfg}
}

// Run blocks until ctx is cancelled, draining pending events in batches.
func (s *Streamer) Run(ctx context.Context) error {
	log.Printf("[events] streamer starting (batch=%d)", s.cfg.BatchSize)
	defer log.Printf("[events] streamer stopped")

	for {
		select {
		case <-ctx.Done():
			if s.producer != nil {
				_ = s.producer.Close()
			}
			return ctx.Err()
		default:
		}

		pending, err := s.store.FetchPendingEvents(ctx, s.cfg.BatchSize)
		if err != nil {
			log.Printf("[events] fetch pending: %v", err)
			sleep(ctx, s.cfg.PollInterval)
			continue
		}
		if len(pending) == 0 {
			sleep(ctx, s.cfg.PollInterval)
			continue
		}

		for _, ev := range pending {
			if err := s.processEvent(ctx, ev); err != nil {
				log.Printf("[events] event %s: %v", ev.ID, err)
			}
		}
	}
}

// processEvent produces the event and records the outcome. An event past
// its attempt budget is marked failed so it stops blocking the queue.
func (s *Streamer) processEvent(parentCtx context.Context, ev models.PlanEvent) error {
	ctx, cancel := context.WithTimeout(parentCtx, 30*time.Second)
	defer cancel()

	value, err := json.Marshal(ev)
	if err != nil {
		_ = s.store.MarkEventStreamed(parentCtx, ev.ID, false, fmt.Sprintf("encode event: %v", err))
		return fmt.Errorf("encode event: %w", err)
	}

	if err := s.producer.Produce(ctx, []byte(ev.PlanID.String()), value); err != nil {
		return s.fail(parentCtx, ev, fmt.Errorf("kafka produce: %w", err))
	}

	if s.archiver != nil && ev.To == models.StatusSolved {
		plan, err := s.store.GetPlan(ctx, ev.PlanID)
		if err == nil {
			if _, err = s.archiver.ArchivePlan(ctx, plan); err != nil {
				return s.fail(parentCtx, ev, fmt.Errorf("archive plan: %w", err))
			}
		} else if err != store.ErrNotFound {
			return s.fail(parentCtx, ev, fmt.Errorf("load plan for archive: %w", err))
		}
		// A deleted plan has nothing left to archive.
	}

	return s.store.MarkEventStreamed(parentCtx, ev.ID, true, "")
}

// fail leaves the event pending for retry until its attempt budget runs
// out, then marks it failed. Attempts was already bumped by the claim.
func (s *Streamer) fail(ctx context.Context, ev models.PlanEvent, cause error) error {
	if ev.Attempts >= s.cfg.MaxAttempts {
		_ = s.store.MarkEventStreamed(ctx, ev.ID, false, cause.Error())
	}
	return cause
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
