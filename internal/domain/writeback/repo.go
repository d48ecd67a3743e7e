package writeback

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusUpdate is the full set of fields a resolved transition writes. The
// repository applies it only when the job still matches the expected status
// and attempt count, which serializes concurrent transitions per job.
type StatusUpdate struct {
	Status          Status
	Attempts        int
	LastError       *string
	LastErrorDetail map[string]interface{}
	AppendAttempt   *Attempt
}

// DeadLetterFilter narrows the operator dead-letter listing. Status "failed"
// matches both dead-letter statuses.
type DeadLetterFilter struct {
	Status     string
	ReasonCode string
	Limit      int
}

// ListFilter narrows the general job listing.
type ListFilter struct {
	NoteID *uuid.UUID
	Status Status
	Limit  int
	Offset int
}

// ReplayOutcome describes what the atomic replay claim did.
type ReplayOutcome string

const (
	ReplayCreated         ReplayOutcome = "created"
	ReplayOriginalMissing ReplayOutcome = "original_not_found"
	ReplayAlreadyClaimed  ReplayOutcome = "already_replayed"
)

// ReplayResult reports the claim outcome. ExistingReplayID is set on
// already_replayed when the prior winner is known.
type ReplayResult struct {
	Outcome          ReplayOutcome
	ExistingReplayID *uuid.UUID
}

// OperatorCounts buckets dead letters by operator visibility.
type OperatorCounts struct {
	Open         int `json:"open"`
	Acknowledged int `json:"acknowledged"`
}

// FailureBreakdown is the windowed failure report derived from the immutable
// attempt ledger.
type FailureBreakdown struct {
	Total        int            `json:"total"`
	Retryable    int            `json:"retryable"`
	NonRetryable int            `json:"nonRetryable"`
	Unknown      int            `json:"unknown"`
	ByReasonCode map[string]int `json:"byReasonCode"`
}

// Summary is the operator status report: current statuses are a point-in-time
// scan, the failure breakdown is windowed over attempt history.
type Summary struct {
	CountsByStatus map[Status]int   `json:"countsByStatus"`
	DeadLetters    OperatorCounts   `json:"deadLetterOperatorCounts"`
	RecentFailures FailureBreakdown `json:"recentFailures"`
}

type Repository interface {
	Create(ctx context.Context, j *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Job, error)
	List(ctx context.Context, f ListFilter) ([]*Job, int, error)
	ListDeadLetters(ctx context.Context, f DeadLetterFilter) ([]*Job, error)

	// UpdateStatus applies upd only if the job currently holds fromStatus and
	// fromAttempts. Returns false when the job changed concurrently.
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus Status, fromAttempts int, upd StatusUpdate) (bool, error)

	// UpdateOperatorStatus is a conditional from->to write on operatorStatus.
	UpdateOperatorStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)

	// CreateReplay atomically claims the original's replayedJobId (only if
	// unset and the original is dead_failed) and inserts the replay job. Under
	// concurrent calls exactly one claim wins.
	CreateReplay(ctx context.Context, originalJobID uuid.UUID, replay *Job) (*ReplayResult, error)

	StatusSummary(ctx context.Context, since time.Time) (*Summary, error)
}
