package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Plan statuses. A plan moves template -> translating -> translated ->
// solving -> solved -> reserving -> done, with error / not found as
// absorbing states and waiting spinup as an externally-driven side state.
const (
	StatusTemplate      = "template"
	StatusTranslating   = "translating"
	StatusTranslated    = "translated"
	StatusSolving       = "solving"
	StatusSolved        = "solved"
	StatusReserving     = "reserving"
	StatusDone          = "done"
	StatusError         = "error"
	StatusNotFound      = "not found"
	StatusWaitingSpinup = "waiting spinup"
)

// Terminal reports whether a plan in the given status will never move again.
func Terminal(status string) bool {
	switch status {
	case StatusDone, StatusError, StatusNotFound:
		return true
	}
	return false
}

// Plan is the persisted record tracking one homing request through the
// translate/solve/reserve pipeline. Owner fields are optimistic-lock
// witnesses, not true locks; counters only ever increase.
type Plan struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	Message      string          `json:"message,omitempty"`
	Timeout      int             `json:"timeout"`
	RecommendMax int             `json:"recommendMax"`
	Template     json.RawMessage `json:"template,omitempty"`
	Translation  json.RawMessage `json:"translation,omitempty"`
	Solution     json.RawMessage `json:"solution,omitempty"`

	TranslationOwner          string `json:"translationOwner,omitempty"`
	TranslationCounter        int    `json:"translationCounter"`
	TranslationBeginTimestamp int64  `json:"translationBeginTimestamp,omitempty"`
	SolverOwner               string `json:"solverOwner,omitempty"`
	SolverCounter             int    `json:"solverCounter"`
	ReservationOwner          string `json:"reservationOwner,omitempty"`
	ReservationCounter        int    `json:"reservationCounter"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Recommendation is one demand's placement in a solution: the chosen
// candidate plus the attributes callers need to act on it.
type Recommendation struct {
	InventoryProvider string                 `json:"inventory_provider"`
	ServiceResourceID string                 `json:"service_resource_id"`
	Candidate         Candidate              `json:"candidate"`
	Attributes        map[string]interface{} `json:"attributes,omitempty"`
}

// Solution is an ordered list of per-demand recommendation maps, first
// discovered solution first.
type Solution struct {
	Recommendations []map[string]Recommendation `json:"recommendations"`
}

// PlanEvent records one successful status transition for downstream
// streaming. Rows are written in the same transaction scope as the
// transition and published asynchronously.
type PlanEvent struct {
	ID        uuid.UUID `json:"id"`
	PlanID    uuid.UUID `json:"planId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Worker    string    `json:"worker,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Ts        time.Time `json:"ts"`
	Streamed  bool      `json:"streamed"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one request/response exchange on the shared-store RPC fabric.
// A caller inserts a row with status "template", a listener claims it
// ("claimed"), executes the method, and fills Response with status "done"
// or "error". Callers poll by ID until the status is terminal.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args"`
	Ctxt      json.RawMessage `json:"ctxt,omitempty"`
	Status    string          `json:"status"`
	Response  json.RawMessage `json:"response,omitempty"`
	Failure   string          `json:"failure,omitempty"`
	Owner     string          `json:"owner,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Message statuses.
const (
	MsgStatusPending = "pending"
	MsgStatusClaimed = "claimed"
	MsgStatusDone    = "done"
	MsgStatusError   = "error"
)
