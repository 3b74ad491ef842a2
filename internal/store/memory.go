package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navarch/homing/internal/models"
)

// MemoryStore is an in-process Store used by tests and local runs. The
// mutex gives it the same effectively-one-writer-per-transition guarantee
// the conditional SQL update provides.
type MemoryStore struct {
	mu       sync.Mutex
	plans    map[uuid.UUID]models.Plan
	messages map[uuid.UUID]models.Message
	events   map[uuid.UUID]models.PlanEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:    map[uuid.UUID]models.Plan{},
		messages: map[uuid.UUID]models.Message{},
		events:   map[uuid.UUID]models.PlanEvent{},
	}
}

func copyJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return append(json.RawMessage(nil), raw...)
}

func (m *MemoryStore) CreatePlan(ctx context.Context, in PlanInput) (models.Plan, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.RecommendMax <= 0 {
		in.RecommendMax = 1
	}
	now := time.Now().UTC()
	plan := models.Plan{
		ID:           in.ID,
		Name:         in.Name,
		Status:       models.StatusTemplate,
		Timeout:      in.Timeout,
		RecommendMax: in.RecommendMax,
		Template:     copyJSON(in.Template, "{}"),
		Created:      now,
		Updated:      now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *MemoryStore) GetPlan(ctx context.Context, id uuid.UUID) (models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return models.Plan{}, ErrNotFound
	}
	return plan, nil
}

func (m *MemoryStore) DeletePlan(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return ErrNotFound
	}
	delete(m.plans, id)
	return nil
}

func (m *MemoryStore) listPlans(match func(models.Plan) bool, limit int) []models.Plan {
	var plans []models.Plan
	for _, p := range m.plans {
		if match(p) {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Updated.Before(plans[j].Updated) })
	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	return plans
}

func (m *MemoryStore) ListPlansByStatus(ctx context.Context, status string, limit int) ([]models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPlans(func(p models.Plan) bool { return p.Status == status }, limit), nil
}

func (m *MemoryStore) ListStuckPlans(ctx context.Context, status string, updatedBefore time.Time, limit int) ([]models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPlans(func(p models.Plan) bool {
		return p.Status == status && p.Updated.Before(updatedBefore)
	}, limit), nil
}

func (m *MemoryStore) AdvancePlan(ctx context.Context, t PlanTransition) (CASResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[t.ID]
	if !ok {
		return CASConditionFailed, nil
	}
	if plan.Status != t.FromStatus {
		return CASConditionFailed, nil
	}
	plan.Status = t.ToStatus
	plan.Message = t.Message
	plan.Updated = time.Now().UTC()
	if t.Translation != nil {
		plan.Translation = copyJSON(t.Translation, "{}")
	}
	if t.Solution != nil {
		plan.Solution = copyJSON(t.Solution, "{}")
	}
	switch t.Stage {
	case StageTranslation:
		if t.Owner != "" {
			plan.TranslationOwner = t.Owner
		}
		if t.BumpCounter {
			plan.TranslationCounter++
		}
		if t.SetBeginTimestamp {
			plan.TranslationBeginTimestamp = time.Now().UTC().UnixMilli()
		}
	case StageSolver:
		if t.Owner != "" {
			plan.SolverOwner = t.Owner
		}
		if t.BumpCounter {
			plan.SolverCounter++
		}
	case StageReservation:
		if t.Owner != "" {
			plan.ReservationOwner = t.Owner
		}
		if t.BumpCounter {
			plan.ReservationCounter++
		}
	}
	m.plans[t.ID] = plan

	ev := models.PlanEvent{
		ID:        uuid.New(),
		PlanID:    t.ID,
		From:      t.FromStatus,
		To:        t.ToStatus,
		Worker:    t.Owner,
		Detail:    t.Message,
		Ts:        plan.Updated,
		CreatedAt: plan.Updated,
	}
	m.events[ev.ID] = ev
	return CASApplied, nil
}

func (m *MemoryStore) ResetOwnedPlans(ctx context.Context, fromStatus, toStatus string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.plans {
		if p.Status != fromStatus {
			continue
		}
		p.Status = toStatus
		p.Updated = time.Now().UTC()
		m.plans[id] = p
		n++
	}
	return n, nil
}

func (m *MemoryStore) CreateMessage(ctx context.Context, in MessageInput) (models.Message, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	now := time.Now().UTC()
	msg := models.Message{
		ID:        in.ID,
		Method:    in.Method,
		Args:      copyJSON(in.Args, "{}"),
		Ctxt:      copyJSON(in.Ctxt, "{}"),
		Status:    models.MsgStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *MemoryStore) GetMessage(ctx context.Context, id uuid.UUID) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return models.Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *MemoryStore) ClaimNextMessage(ctx context.Context, owner string) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		selected models.Message
		found    bool
	)
	for _, msg := range m.messages {
		if msg.Status != models.MsgStatusPending {
			continue
		}
		if !found || msg.CreatedAt.Before(selected.CreatedAt) {
			selected = msg
			found = true
		}
	}
	if !found {
		return models.Message{}, ErrNotFound
	}
	selected.Status = models.MsgStatusClaimed
	selected.Owner = owner
	selected.UpdatedAt = time.Now().UTC()
	m.messages[selected.ID] = selected
	return selected, nil
}

func (m *MemoryStore) CompleteMessage(ctx context.Context, id uuid.UUID, response json.RawMessage, failure string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Status = models.MsgStatusDone
	if failure != "" {
		msg.Status = models.MsgStatusError
		msg.Failure = failure
	}
	msg.Response = copyJSON(response, "{}")
	msg.UpdatedAt = time.Now().UTC()
	m.messages[id] = msg
	return nil
}

func (m *MemoryStore) FetchPendingEvents(ctx context.Context, limit int) ([]models.PlanEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []models.PlanEvent
	for _, ev := range m.events {
		if !ev.Streamed {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	for i := range events {
		ev := m.events[events[i].ID]
		ev.Attempts++
		m.events[ev.ID] = ev
		events[i].Attempts = ev.Attempts
	}
	return events, nil
}

func (m *MemoryStore) MarkEventStreamed(ctx context.Context, id uuid.UUID, ok bool, failure string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, found := m.events[id]
	if !found {
		return ErrNotFound
	}
	ev.Streamed = true
	if !ok {
		ev.Detail = failure
	}
	m.events[id] = ev
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
