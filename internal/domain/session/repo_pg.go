package session

import (
	"context"

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

const sessionCols = `session_id, division, status, last_ingested_at, created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.SessionID, &s.Division, &s.Status, &s.LastIngestedAt, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Upsert(ctx context.Context, sessionID, division, status string) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter_sessions (session_id, division, status, last_ingested_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET status = EXCLUDED.status,
		    last_ingested_at = NOW(),
		    updated_at = NOW()
		RETURNING `+sessionCols,
		sessionID, division, status))
}

func (r *repoPG) GetByID(ctx context.Context, sessionID string) (*Session, error) {
	s, err := scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM encounter_sessions WHERE session_id = $1`, sessionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter_sessions SET status = $2, updated_at = NOW() WHERE session_id = $1`,
		sessionID, status)
	return err
}

type segmentRepoPG struct{ pool *pgxpool.Pool }

func NewSegmentRepoPG(pool *pgxpool.Pool) SegmentRepository {
	return &segmentRepoPG{pool: pool}
}

func (r *segmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *segmentRepoPG) UpsertMany(ctx context.Context, segments []*Segment) (int, error) {
	count := 0
	for _, seg := range segments {
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO transcript_segments (session_id, segment_id, speaker, start_ms, end_ms, text)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (session_id, segment_id) DO UPDATE
			SET speaker = EXCLUDED.speaker,
			    start_ms = EXCLUDED.start_ms,
			    end_ms = EXCLUDED.end_ms,
			    text = EXCLUDED.text,
			    updated_at = NOW()`,
			seg.SessionID, seg.SegmentID, seg.Speaker, seg.StartMs, seg.EndMs, seg.Text)
		if err != nil {
			return count, err
		}
		count += int(tag.RowsAffected())
	}
	return count, nil
}

func (r *segmentRepoPG) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM transcript_segments WHERE session_id = $1`, sessionID).Scan(&count)
	return count, err
}

func (r *segmentRepoPG) ListBySession(ctx context.Context, sessionID string) ([]*Segment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT session_id, segment_id, speaker, start_ms, end_ms, text, created_at, updated_at
		FROM transcript_segments
		WHERE session_id = $1
		ORDER BY start_ms ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.SessionID, &s.SegmentID, &s.Speaker, &s.StartMs, &s.EndMs, &s.Text, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, &s)
	}
	return segments, rows.Err()
}
