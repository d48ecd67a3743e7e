package fact

import (
	"context"

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

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO fact_ledger (entry_id, session_id, segment_id, fact_type, fact_value, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.EntryID, e.SessionID, e.SegmentID, e.FactType, e.FactValue, e.Confidence,
	).Scan(&e.CreatedAt)
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID string) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT entry_id, session_id, segment_id, fact_type, fact_value, confidence, created_at
		FROM fact_ledger
		WHERE session_id = $1
		ORDER BY created_at ASC, entry_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EntryID, &e.SessionID, &e.SegmentID, &e.FactType, &e.FactValue, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *repoPG) SegmentIDsWithFacts(ctx context.Context, sessionID string) (map[string]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT segment_id FROM fact_ledger
		WHERE session_id = $1 AND segment_id IS NOT NULL`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
