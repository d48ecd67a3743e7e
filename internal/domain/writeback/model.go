package writeback

import (
	"time"

	"github.com/google/uuid"
)

// Job is one delivery attempt series against an external EHR target. Once a
// job reaches a terminal status it is immutable except for operatorStatus and
// the replay links.
type Job struct {
	JobID           uuid.UUID              `db:"job_id" json:"jobId"`
	NoteID          uuid.UUID              `db:"note_id" json:"noteId"`
	TargetSystem    string                 `db:"target_system" json:"targetSystem"`
	IdempotencyKey  string                 `db:"idempotency_key" json:"idempotencyKey"`
	Status          Status                 `db:"status" json:"status"`
	Attempts        int                    `db:"attempts" json:"attempts"`
	LastError       *string                `db:"last_error" json:"lastError,omitempty"`
	LastErrorDetail map[string]interface{} `db:"last_error_detail" json:"lastErrorDetail,omitempty"`
	AttemptHistory  []Attempt              `db:"attempt_history" json:"attemptHistory"`
	ReplayOfJobID   *uuid.UUID             `db:"replay_of_job_id" json:"replayOfJobId,omitempty"`
	ReplayedJobID   *uuid.UUID             `db:"replayed_job_id" json:"replayedJobId,omitempty"`
	OperatorStatus  string                 `db:"operator_status" json:"operatorStatus"`
	CreatedAt       time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updatedAt"`
}

// Attempt is one entry in the immutable per-job failure ledger. attemptHistory
// only grows; summaries window over OccurredAt.
type Attempt struct {
	Attempt     int                    `json:"attempt"`
	FromStatus  Status                 `json:"fromStatus"`
	ToStatus    Status                 `json:"toStatus"`
	Error       string                 `json:"error"`
	ErrorDetail map[string]interface{} `json:"errorDetail,omitempty"`
	OccurredAt  time.Time              `json:"occurredAt"`
}

// Supported delivery targets.
var validTargetSystems = map[string]bool{
	"nextgen": true,
	"webpt":   true,
}

// Operator visibility states for dead letters. Acknowledged is terminal.
const (
	OperatorStatusOpen         = "open"
	OperatorStatusAcknowledged = "acknowledged"
)
