package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/navarch/homing/internal/models"
)

var ErrNotFound = errors.New("not found")

// CASResult is the outcome of a conditional (compare-and-set) plan update.
// ConditionFailed means another worker advanced the plan first; it is the
// expected concurrency-control signal, not an error. TransportError is
// accompanied by a non-nil error from the underlying store.
type CASResult int

const (
	CASApplied CASResult = iota
	CASConditionFailed
	CASTransportError
)

func (r CASResult) String() string {
	switch r {
	case CASApplied:
		return "applied"
	case CASConditionFailed:
		return "condition failed"
	case CASTransportError:
		return "transport error"
	}
	return "unknown"
}

// Stage names the worker pool making a transition; it selects which
// owner/counter columns AdvancePlan touches.
const (
	StageTranslation = "translation"
	StageSolver      = "solver"
	StageReservation = "reservation"
)

type PlanInput struct {
	ID           uuid.UUID
	Name         string
	Timeout      int
	RecommendMax int
	Template     json.RawMessage
}

// PlanTransition describes one optimistic status advance. The update is
// applied only if the stored status still equals FromStatus.
type PlanTransition struct {
	ID         uuid.UUID
	FromStatus string
	ToStatus   string
	Message    string

	// Stage selects the owner/counter column family. Empty for transitions
	// that touch no ownership fields (timeout reclaims by other workers).
	Stage       string
	Owner       string
	BumpCounter bool

	// SetBeginTimestamp stamps translation_begin_timestamp (translation
	// pickup only).
	SetBeginTimestamp bool

	// Optional payloads written together with the status.
	Translation json.RawMessage
	Solution    json.RawMessage
}

type MessageInput struct {
	ID     uuid.UUID
	Method string
	Args   json.RawMessage
	Ctxt   json.RawMessage
}

type PlanEventInput struct {
	PlanID uuid.UUID
	From   string
	To     string
	Worker string
	Detail string
}

// Store is the persistence contract shared by the API service and the
// worker pools. Plan mutation is CAS-only; there are no unconditional
// status writes.
type Store interface {
	CreatePlan(ctx context.Context, in PlanInput) (models.Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (models.Plan, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error
	ListPlansByStatus(ctx context.Context, status string, limit int) ([]models.Plan, error)
	// ListStuckPlans returns plans in the given status whose updated
	// timestamp is older than the cutoff (crashed-owner reclaim).
	ListStuckPlans(ctx context.Context, status string, updatedBefore time.Time, limit int) ([]models.Plan, error)
	AdvancePlan(ctx context.Context, t PlanTransition) (CASResult, error)
	// ResetOwnedPlans sweeps plans stuck in an in-progress status back to
	// the preceding stable status. Only safe in active/passive deployments.
	ResetOwnedPlans(ctx context.Context, fromStatus, toStatus string) (int, error)

	CreateMessage(ctx context.Context, in MessageInput) (models.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (models.Message, error)
	ClaimNextMessage(ctx context.Context, owner string) (models.Message, error)
	CompleteMessage(ctx context.Context, id uuid.UUID, response json.RawMessage, failure string) error

	FetchPendingEvents(ctx context.Context, limit int) ([]models.PlanEvent, error)
	MarkEventStreamed(ctx context.Context, id uuid.UUID, ok bool, failure string) error

	Ping(ctx context.Context) error
}
