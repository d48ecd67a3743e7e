package validation

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

const resultCols = `result_id, note_id, rules_checked, rules_failed, failure_rate, decision, failed_rule_ids, created_at`

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	err := row.Scan(&res.ResultID, &res.NoteID, &res.RulesChecked, &res.RulesFailed,
		&res.FailureRate, &res.Decision, &res.FailedRuleIDs, &res.CreatedAt)
	return &res, err
}

func (r *repoPG) Insert(ctx context.Context, res *Result) error {
	if res.ResultID == uuid.Nil {
		res.ResultID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO validation_results (result_id, note_id, rules_checked, rules_failed, failure_rate, decision, failed_rule_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		res.ResultID, res.NoteID, res.RulesChecked, res.RulesFailed,
		res.FailureRate, res.Decision, res.FailedRuleIDs,
	).Scan(&res.CreatedAt)
}

func (r *repoPG) LatestByNote(ctx context.Context, noteID uuid.UUID) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx, `
		SELECT `+resultCols+` FROM validation_results
		WHERE note_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, noteID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return res, err
}
