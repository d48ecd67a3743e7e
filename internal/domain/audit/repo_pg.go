package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinscribe/clinscribe/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const auditCols = `event_id, session_id, note_id, event_type, actor, payload, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var payload []byte
	if err := row.Scan(&e.EventID, &e.SessionID, &e.NoteID, &e.EventType, &e.Actor, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (r *repoPG) Insert(ctx context.Context, e *Event) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_events (event_id, session_id, note_id, event_type, actor, payload)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING created_at`,
		e.EventID, e.SessionID, e.NoteID, e.EventType, e.Actor, payload).Scan(&e.CreatedAt)
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID string) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+auditCols+` FROM audit_events WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListByNote(ctx context.Context, noteID uuid.UUID) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+auditCols+` FROM audit_events WHERE note_id = $1 ORDER BY created_at ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
