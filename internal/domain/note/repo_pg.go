package note

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

const noteCols = `note_id, session_id, division, note_family, body, status, created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.NoteID, &n.SessionID, &n.Division, &n.NoteFamily, &n.Body, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	if n.NoteID == uuid.Nil {
		n.NoteID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO composed_notes (note_id, session_id, division, note_family, body, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		n.NoteID, n.SessionID, n.Division, n.NoteFamily, n.Body, n.Status).
		Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, err := scanNote(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM composed_notes WHERE note_id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return n, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE composed_notes
		SET status = $3, updated_at = NOW()
		WHERE note_id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListBySession(ctx context.Context, sessionID string) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+noteCols+` FROM composed_notes WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
