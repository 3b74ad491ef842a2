package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/store"
)

type fakeProducer struct {
	keys   []string
	values [][]byte
	err    error
	closed bool
}

func (f *fakeProducer) Produce(ctx context.Context, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

type fakeArchiver struct {
	archived []uuid.UUID
	err      error
}

func (f *fakeArchiver) ArchivePlan(ctx context.Context, plan models.Plan) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, plan.ID)
	return "plans/" + plan.ID.String() + ".json", nil
}

func seedPlan(t *testing.T, st store.Store, transitions ...[2]string) models.Plan {
	t.Helper()
	plan, err := st.CreatePlan(context.Background(), store.PlanInput{
		Name:     "streamer-test",
		Template: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	for _, tr := range transitions {
		res, err := st.AdvancePlan(context.Background(), store.PlanTransition{
			ID:         plan.ID,
			FromStatus: tr[0],
			ToStatus:   tr[1],
		})
		if err != nil || res != store.CASApplied {
			t.Fatalf("advance %s -> %s: res=%v err=%v", tr[0], tr[1], res, err)
		}
	}
	return plan
}

func drain(t *testing.T, s *Streamer, st store.Store) []error {
	t.Helper()
	pending, err := st.FetchPendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	var errs []error
	for _, ev := range pending {
		if err := s.processEvent(context.Background(), ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func pendingCount(t *testing.T, st store.Store) int {
	t.Helper()
	pending, err := st.FetchPendingEvents(context.Background(), 100)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	return len(pending)
}

func TestStreamerPublishesEvents(t *testing.T) {
	st := store.NewMemoryStore()
	plan := seedPlan(t, st, [2]string{models.StatusTemplate, models.StatusTranslating})

	p := &fakeProducer{}
	s := NewStreamer(st, p, nil, StreamerConfig{})
	if errs := drain(t, s, st); len(errs) != 0 {
		t.Fatalf("process: %v", errs)
	}

	if len(p.keys) != 1 || p.keys[0] != plan.ID.String() {
		t.Fatalf("keys = %v", p.keys)
	}
	var ev models.PlanEvent
	if err := json.Unmarshal(p.values[0], &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.From != models.StatusTemplate || ev.To != models.StatusTranslating {
		t.Fatalf("event = %+v", ev)
	}

	// streamed events are not fetched again
	if n := pendingCount(t, st); n != 0 {
		t.Fatalf("pending = %d", n)
	}
}

func TestStreamerArchivesSolvedPlans(t *testing.T) {
	st := store.NewMemoryStore()
	plan := seedPlan(t, st,
		[2]string{models.StatusTemplate, models.StatusTranslating},
		[2]string{models.StatusTranslating, models.StatusTranslated},
		[2]string{models.StatusTranslated, models.StatusSolving},
		[2]string{models.StatusSolving, models.StatusSolved},
	)

	p := &fakeProducer{}
	a := &fakeArchiver{}
	s := NewStreamer(st, p, a, StreamerConfig{})
	if errs := drain(t, s, st); len(errs) != 0 {
		t.Fatalf("process: %v", errs)
	}

	if len(p.keys) != 4 {
		t.Fatalf("produced %d events", len(p.keys))
	}
	// only the transition into solved is archived
	if len(a.archived) != 1 || a.archived[0] != plan.ID {
		t.Fatalf("archived = %v", a.archived)
	}
}

func TestStreamerToleratesDeletedPlanOnArchive(t *testing.T) {
	st := store.NewMemoryStore()
	plan := seedPlan(t, st,
		[2]string{models.StatusTemplate, models.StatusTranslating},
		[2]string{models.StatusTranslating, models.StatusTranslated},
		[2]string{models.StatusTranslated, models.StatusSolving},
		[2]string{models.StatusSolving, models.StatusSolved},
	)
	if err := st.DeletePlan(context.Background(), plan.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	a := &fakeArchiver{}
	s := NewStreamer(st, &fakeProducer{}, a, StreamerConfig{})
	if errs := drain(t, s, st); len(errs) != 0 {
		t.Fatalf("process: %v", errs)
	}
	if len(a.archived) != 0 {
		t.Fatalf("archived = %v", a.archived)
	}
	if n := pendingCount(t, st); n != 0 {
		t.Fatalf("pending = %d", n)
	}
}

func TestStreamerRetriesThenParksEvent(t *testing.T) {
	st := store.NewMemoryStore()
	seedPlan(t, st, [2]string{models.StatusTemplate, models.StatusTranslating})

	p := &fakeProducer{err: errors.New("broker down")}
	s := NewStreamer(st, p, nil, StreamerConfig{MaxAttempts: 2})

	// first attempt fails but the event stays pending
	if errs := drain(t, s, st); len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	// second attempt exhausts the budget and parks the event
	if errs := drain(t, s, st); len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	if n := pendingCount(t, st); n != 0 {
		t.Fatalf("pending = %d after exhausting attempts", n)
	}
}

func TestStreamerArchiveFailureLeavesEventPending(t *testing.T) {
	st := store.NewMemoryStore()
	seedPlan(t, st,
		[2]string{models.StatusTemplate, models.StatusTranslating},
		[2]string{models.StatusTranslating, models.StatusTranslated},
		[2]string{models.StatusTranslated, models.StatusSolving},
		[2]string{models.StatusSolving, models.StatusSolved},
	)

	a := &fakeArchiver{err: errors.New("bucket unreachable")}
	s := NewStreamer(st, &fakeProducer{}, a, StreamerConfig{MaxAttempts: 5})
	errs := drain(t, s, st)
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	// the three non-solved events streamed; the solved one is retried
	if n := pendingCount(t, st); n != 1 {
		t.Fatalf("pending = %d", n)
	}
}
