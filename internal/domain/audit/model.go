package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one immutable row in the append-only audit trail. Events correlate
// pipeline entities through their payload (jobId, originalJobId, replayJobId)
// and are a read model for timelines, never the source of truth for state.
type Event struct {
	EventID   uuid.UUID              `db:"event_id" json:"eventId"`
	SessionID *string                `db:"session_id" json:"sessionId,omitempty"`
	NoteID    *uuid.UUID             `db:"note_id" json:"noteId,omitempty"`
	EventType string                 `db:"event_type" json:"eventType"`
	Actor     string                 `db:"actor" json:"actor"`
	Payload   map[string]interface{} `db:"payload" json:"payload"`
	CreatedAt time.Time              `db:"created_at" json:"createdAt"`
}

// Event types recorded by the pipeline.
const (
	EventFactExtractionQueued    = "fact_extraction_queued"
	EventFactExtractionCompleted = "fact_extraction_completed"
	EventNoteComposed            = "note_composed"
	EventValidationDecided       = "validation_decided"
	EventJobCreated              = "writeback_job_created"
	EventTransitionApplied       = "writeback_transition_applied"
	EventDeadLetterReplayed      = "writeback_dead_letter_replayed"
	EventDeadLetterAcknowledged  = "writeback_dead_letter_acknowledged"
)

// Actors attributed on audit events.
const (
	ActorSystem   = "system"
	ActorOperator = "operator"
)
