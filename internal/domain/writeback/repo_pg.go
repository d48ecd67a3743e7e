package writeback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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

const jobCols = `job_id, note_id, target_system, idempotency_key, status, attempts,
	last_error, last_error_detail, attempt_history, replay_of_job_id, replayed_job_id,
	operator_status, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.JobID, &j.NoteID, &j.TargetSystem, &j.IdempotencyKey, &j.Status,
		&j.Attempts, &j.LastError, &j.LastErrorDetail, &j.AttemptHistory,
		&j.ReplayOfJobID, &j.ReplayedJobID, &j.OperatorStatus, &j.CreatedAt, &j.UpdatedAt)
	return &j, err
}

func scanJobs(rows pgx.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, j *Job) error {
	if j.JobID == uuid.Nil {
		j.JobID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO writeback_jobs (job_id, note_id, target_system, idempotency_key, status, attempts, attempt_history, operator_status)
		VALUES ($1, $2, $3, $4, $5, 0, '[]'::jsonb, $6)
		RETURNING created_at, updated_at`,
		j.JobID, j.NoteID, j.TargetSystem, j.IdempotencyKey, j.Status, OperatorStatusOpen,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	j, err := scanJob(r.conn(ctx).QueryRow(ctx,
		`SELECT `+jobCols+` FROM writeback_jobs WHERE job_id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *repoPG) GetByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	j, err := scanJob(r.conn(ctx).QueryRow(ctx,
		`SELECT `+jobCols+` FROM writeback_jobs WHERE idempotency_key = $1`, key))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Job, int, error) {
	where := `WHERE ($1::uuid IS NULL OR note_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM writeback_jobs `+where, f.NoteID, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+jobCols+` FROM writeback_jobs `+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		f.NoteID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	jobs, err := scanJobs(rows)
	return jobs, total, err
}

// lastReasonExpr derives the normalized reason code of the most recent
// attempt, defaulting to UNKNOWN when the detail carries none.
const lastReasonExpr = `COALESCE(NULLIF(UPPER(TRIM(COALESCE(
	attempt_history -> -1 -> 'errorDetail' ->> 'reasonCode',
	attempt_history -> -1 -> 'errorDetail' ->> 'code'))), ''), 'UNKNOWN')`

func (r *repoPG) ListDeadLetters(ctx context.Context, f DeadLetterFilter) ([]*Job, error) {
	statuses := deadLetterStatuses(f.Status)
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+jobCols+` FROM writeback_jobs
		WHERE status = ANY($1)
		AND ($2 = '' OR `+lastReasonExpr+` = $2)
		ORDER BY updated_at DESC
		LIMIT $3`,
		statuses, normalizeReasonCode(f.ReasonCode), f.Limit)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func deadLetterStatuses(filter string) []string {
	switch Status(filter) {
	case StatusRetryableFailed:
		return []string{string(StatusRetryableFailed)}
	case StatusDeadFailed:
		return []string{string(StatusDeadFailed)}
	default:
		return []string{string(StatusRetryableFailed), string(StatusDeadFailed)}
	}
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus Status, fromAttempts int, upd StatusUpdate) (bool, error) {
	var appendJSON []byte
	if upd.AppendAttempt != nil {
		b, err := json.Marshal([]Attempt{*upd.AppendAttempt})
		if err != nil {
			return false, fmt.Errorf("marshal attempt: %w", err)
		}
		appendJSON = b
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE writeback_jobs
		SET status = $4,
		    attempts = $5,
		    last_error = $6,
		    last_error_detail = $7,
		    attempt_history = CASE WHEN $8::jsonb IS NULL THEN attempt_history ELSE attempt_history || $8::jsonb END,
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2 AND attempts = $3`,
		id, fromStatus, fromAttempts,
		upd.Status, upd.Attempts, upd.LastError, upd.LastErrorDetail, appendJSON)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) UpdateOperatorStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE writeback_jobs
		SET operator_status = $3, updated_at = NOW()
		WHERE job_id = $1 AND operator_status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CreateReplay claims the original and inserts the replay in one statement.
// The conditional UPDATE only matches an unclaimed dead letter, and the
// INSERT only fires when the claim matched, so concurrent calls race on a
// single row lock and exactly one wins.
func (r *repoPG) CreateReplay(ctx context.Context, originalJobID uuid.UUID, replay *Job) (*ReplayResult, error) {
	if replay.JobID == uuid.Nil {
		replay.JobID = uuid.New()
	}

	var inserted int
	err := r.conn(ctx).QueryRow(ctx, `
		WITH claimed AS (
			UPDATE writeback_jobs
			SET replayed_job_id = $2, updated_at = NOW()
			WHERE job_id = $1 AND status = $5 AND replayed_job_id IS NULL
			RETURNING job_id
		), inserted AS (
			INSERT INTO writeback_jobs (job_id, note_id, target_system, idempotency_key, status, attempts, attempt_history, replay_of_job_id, operator_status)
			SELECT $2, $3, $4, $6, $7, 0, '[]'::jsonb, $1, $8
			FROM claimed
			RETURNING job_id
		)
		SELECT COUNT(*) FROM inserted`,
		originalJobID, replay.JobID, replay.NoteID, replay.TargetSystem,
		StatusDeadFailed, replay.IdempotencyKey, StatusQueued, OperatorStatusOpen,
	).Scan(&inserted)
	if err != nil {
		return nil, err
	}
	if inserted == 1 {
		return &ReplayResult{Outcome: ReplayCreated}, nil
	}

	original, err := r.GetByID(ctx, originalJobID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return &ReplayResult{Outcome: ReplayOriginalMissing}, nil
	}
	return &ReplayResult{Outcome: ReplayAlreadyClaimed, ExistingReplayID: original.ReplayedJobID}, nil
}

func (r *repoPG) StatusSummary(ctx context.Context, since time.Time) (*Summary, error) {
	s := &Summary{
		CountsByStatus: make(map[Status]int),
		RecentFailures: FailureBreakdown{ByReasonCode: make(map[string]int)},
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM writeback_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		s.CountsByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT operator_status, COUNT(*) FROM writeback_jobs
		WHERE status = ANY($1) GROUP BY operator_status`,
		[]string{string(StatusRetryableFailed), string(StatusDeadFailed)})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var op string
		var count int
		if err := rows.Scan(&op, &count); err != nil {
			rows.Close()
			return nil, err
		}
		switch op {
		case OperatorStatusOpen:
			s.DeadLetters.Open = count
		case OperatorStatusAcknowledged:
			s.DeadLetters.Acknowledged = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT COALESCE(NULLIF(UPPER(TRIM(COALESCE(
			a -> 'errorDetail' ->> 'reasonCode',
			a -> 'errorDetail' ->> 'code'))), ''), 'UNKNOWN') AS reason, COUNT(*)
		FROM writeback_jobs j, LATERAL jsonb_array_elements(j.attempt_history) a
		WHERE (a ->> 'occurredAt')::timestamptz >= $1
		GROUP BY reason`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		s.RecentFailures.ByReasonCode[reason] = count
		s.RecentFailures.Total += count
		switch Classify(reason) {
		case ClassRetryable:
			s.RecentFailures.Retryable += count
		case ClassNonRetryable:
			s.RecentFailures.NonRetryable += count
		default:
			s.RecentFailures.Unknown += count
		}
	}
	return s, rows.Err()
}
