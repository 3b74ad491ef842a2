package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/navarch/homing/internal/models"
)

// PGStore persists plans, RPC messages, and plan events in postgres.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func ensureJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}

const planColumns = `
	id, name, status, message, timeout, recommend_max,
	template, translation, solution,
	translation_owner, translation_counter, translation_begin_timestamp,
	solver_owner, solver_counter,
	reservation_owner, reservation_counter,
	created, updated
`

func (s *PGStore) CreatePlan(ctx context.Context, in PlanInput) (models.Plan, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.RecommendMax <= 0 {
		in.RecommendMax = 1
	}
	query := `
		INSERT INTO plans (id, name, status, timeout, recommend_max, template)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created, updated
	`
	var created, updated time.Time
	if err := s.db.QueryRowContext(
		ctx,
		query,
		in.ID,
		in.Name,
		models.StatusTemplate,
		in.Timeout,
		in.RecommendMax,
		ensureJSON(in.Template, "{}"),
	).Scan(&created, &updated); err != nil {
		return models.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	return models.Plan{
		ID:           in.ID,
		Name:         in.Name,
		Status:       models.StatusTemplate,
		Timeout:      in.Timeout,
		RecommendMax: in.RecommendMax,
		Template:     ensureJSON(in.Template, "{}"),
		Created:      created,
		Updated:      updated,
	}, nil
}

func scanPlan(scan func(...interface{}) error) (models.Plan, error) {
	var (
		p                     models.Plan
		message               sql.NullString
		template, translation []byte
		solution              []byte
		trOwner, soOwner      sql.NullString
		reOwner               sql.NullString
		trBegin               sql.NullInt64
	)
	err := scan(
		&p.ID, &p.Name, &p.Status, &message, &p.Timeout, &p.RecommendMax,
		&template, &translation, &solution,
		&trOwner, &p.TranslationCounter, &trBegin,
		&soOwner, &p.SolverCounter,
		&reOwner, &p.ReservationCounter,
		&p.Created, &p.Updated,
	)
	if err != nil {
		return models.Plan{}, err
	}
	if message.Valid {
		p.Message = message.String
	}
	p.Template = append(json.RawMessage(nil), template...)
	p.Translation = append(json.RawMessage(nil), translation...)
	p.Solution = append(json.RawMessage(nil), solution...)
	if trOwner.Valid {
		p.TranslationOwner = trOwner.String
	}
	if trBegin.Valid {
		p.TranslationBeginTimestamp = trBegin.Int64
	}
	if soOwner.Valid {
		p.SolverOwner = soOwner.String
	}
	if reOwner.Valid {
		p.ReservationOwner = reOwner.String
	}
	return p, nil
}

func (s *PGStore) GetPlan(ctx context.Context, id uuid.UUID) (models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)
	p, err := scanPlan(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Plan{}, ErrNotFound
		}
		return models.Plan{}, fmt.Errorf("select plan: %w", err)
	}
	return p, nil
}

func (s *PGStore) DeletePlan(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete plan rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) listPlans(ctx context.Context, query string, args ...interface{}) ([]models.Plan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("plans rows err: %w", err)
	}
	return plans, nil
}

func (s *PGStore) ListPlansByStatus(ctx context.Context, status string, limit int) ([]models.Plan, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + planColumns + `
		FROM plans WHERE status = $1 ORDER BY updated ASC LIMIT $2`
	return s.listPlans(ctx, query, status, limit)
}

func (s *PGStore) ListStuckPlans(ctx context.Context, status string, updatedBefore time.Time, limit int) ([]models.Plan, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + planColumns + `
		FROM plans WHERE status = $1 AND updated < $2 ORDER BY updated ASC LIMIT $3`
	return s.listPlans(ctx, query, status, updatedBefore, limit)
}

// AdvancePlan applies a status transition conditioned on the stored status
// still matching t.FromStatus. On success a plan_events row is appended in
// the same transaction so the event stream never observes a transition that
// was not committed.
func (s *PGStore) AdvancePlan(ctx context.Context, t PlanTransition) (CASResult, error) {
	sets := []string{"updated = now()"}
	args := []interface{}{}
	idx := 1

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	addSet("status", t.ToStatus)
	addSet("message", t.Message)
	if t.Translation != nil {
		addSet("translation", ensureJSON(t.Translation, "{}"))
	}
	if t.Solution != nil {
		addSet("solution", ensureJSON(t.Solution, "{}"))
	}
	switch t.Stage {
	case StageTranslation:
		if t.Owner != "" {
			addSet("translation_owner", t.Owner)
		}
		if t.BumpCounter {
			sets = append(sets, "translation_counter = translation_counter + 1")
		}
		if t.SetBeginTimestamp {
			addSet("translation_begin_timestamp", time.Now().UTC().UnixMilli())
		}
	case StageSolver:
		if t.Owner != "" {
			addSet("solver_owner", t.Owner)
		}
		if t.BumpCounter {
			sets = append(sets, "solver_counter = solver_counter + 1")
		}
	case StageReservation:
		if t.Owner != "" {
			addSet("reservation_owner", t.Owner)
		}
		if t.BumpCounter {
			sets = append(sets, "reservation_counter = reservation_counter + 1")
		}
	}

	query := fmt.Sprintf(
		"UPDATE plans SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), idx, idx+1,
	)
	args = append(args, t.ID, t.FromStatus)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CASTransportError, fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return CASTransportError, fmt.Errorf("advance plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CASTransportError, fmt.Errorf("advance plan rows: %w", err)
	}
	if n == 0 {
		return CASConditionFailed, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plan_events (id, plan_id, from_status, to_status, worker, detail)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, uuid.New(), t.ID, t.FromStatus, t.ToStatus, t.Owner, t.Message); err != nil {
		return CASTransportError, fmt.Errorf("insert plan event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return CASTransportError, fmt.Errorf("commit advance tx: %w", err)
	}
	return CASApplied, nil
}

func (s *PGStore) ResetOwnedPlans(ctx context.Context, fromStatus, toStatus string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET status = $1, updated = now()
		WHERE status = $2
	`, toStatus, fromStatus)
	if err != nil {
		return 0, fmt.Errorf("reset plans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset plans rows: %w", err)
	}
	return int(n), nil
}

func (s *PGStore) CreateMessage(ctx context.Context, in MessageInput) (models.Message, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	query := `
		INSERT INTO plan_messages (id, method, args, ctxt, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at
	`
	var created, updated time.Time
	if err := s.db.QueryRowContext(
		ctx,
		query,
		in.ID,
		in.Method,
		ensureJSON(in.Args, "{}"),
		ensureJSON(in.Ctxt, "{}"),
		models.MsgStatusPending,
	).Scan(&created, &updated); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return models.Message{
		ID:        in.ID,
		Method:    in.Method,
		Args:      ensureJSON(in.Args, "{}"),
		Ctxt:      ensureJSON(in.Ctxt, "{}"),
		Status:    models.MsgStatusPending,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

const messageColumns = `id, method, args, ctxt, status, response, failure, owner, created_at, updated_at`

func scanMessage(scan func(...interface{}) error) (models.Message, error) {
	var (
		m              models.Message
		args, ctxt     []byte
		response       []byte
		failure, owner sql.NullString
	)
	err := scan(&m.ID, &m.Method, &args, &ctxt, &m.Status, &response, &failure, &owner, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return models.Message{}, err
	}
	m.Args = append(json.RawMessage(nil), args...)
	m.Ctxt = append(json.RawMessage(nil), ctxt...)
	m.Response = append(json.RawMessage(nil), response...)
	if failure.Valid {
		m.Failure = failure.String
	}
	if owner.Valid {
		m.Owner = owner.String
	}
	return m, nil
}

func (s *PGStore) GetMessage(ctx context.Context, id uuid.UUID) (models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM plan_messages WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)
	m, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("select message: %w", err)
	}
	return m, nil
}

// ClaimNextMessage claims the oldest pending RPC request. SKIP LOCKED keeps
// concurrent listeners from contending on the same row.
func (s *PGStore) ClaimNextMessage(ctx context.Context, owner string) (models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + messageColumns + `
		FROM plan_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`
	row := tx.QueryRowContext(ctx, query, models.MsgStatusPending)
	m, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("select pending message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE plan_messages SET status = $1, owner = $2, updated_at = now() WHERE id = $3
	`, models.MsgStatusClaimed, owner, m.ID); err != nil {
		return models.Message{}, fmt.Errorf("claim message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit claim tx: %w", err)
	}
	m.Status = models.MsgStatusClaimed
	m.Owner = owner
	return m, nil
}

func (s *PGStore) CompleteMessage(ctx context.Context, id uuid.UUID, response json.RawMessage, failure string) error {
	status := models.MsgStatusDone
	if failure != "" {
		status = models.MsgStatusError
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE plan_messages
		SET status = $1, response = $2, failure = $3, updated_at = now()
		WHERE id = $4
	`, status, ensureJSON(response, "{}"), failure, id)
	if err != nil {
		return fmt.Errorf("complete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete message rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FetchPendingEvents(ctx context.Context, limit int) ([]models.PlanEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin events tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, plan_id, from_status, to_status, worker, detail, ts, streamed, attempts, created_at
		FROM plan_events
		WHERE streamed = false
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var events []models.PlanEvent
	for rows.Next() {
		var (
			ev             models.PlanEvent
			worker, detail sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.PlanID, &ev.From, &ev.To, &worker, &detail, &ev.Ts, &ev.Streamed, &ev.Attempts, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if worker.Valid {
			ev.Worker = worker.String
		}
		if detail.Valid {
			ev.Detail = detail.String
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events rows err: %w", err)
	}

	for i := range events {
		if _, err := tx.ExecContext(ctx, `
			UPDATE plan_events SET attempts = attempts + 1 WHERE id = $1
		`, events[i].ID); err != nil {
			return nil, fmt.Errorf("bump event attempts: %w", err)
		}
		events[i].Attempts++
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit events tx: %w", err)
	}
	return events, nil
}

func (s *PGStore) MarkEventStreamed(ctx context.Context, id uuid.UUID, ok bool, failure string) error {
	var err error
	if ok {
		_, err = s.db.ExecContext(ctx, `
			UPDATE plan_events SET streamed = true WHERE id = $1
		`, id)
	} else {
		// Terminal failure: park the row so it stops being claimed, with
		// the cause recorded for operators.
		_, err = s.db.ExecContext(ctx, `
			UPDATE plan_events SET streamed = true, detail = $2 WHERE id = $1
		`, id, failure)
	}
	if err != nil {
		return fmt.Errorf("mark event streamed: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
