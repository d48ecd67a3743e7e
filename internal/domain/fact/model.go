package fact

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one extracted clinical observation in the fact ledger. Entries are
// append-only; re-running extraction for a session never rewrites rows that
// already exist for a segment.
type Entry struct {
	EntryID    uuid.UUID              `db:"entry_id" json:"entryId"`
	SessionID  string                 `db:"session_id" json:"sessionId"`
	SegmentID  *string                `db:"segment_id" json:"segmentId,omitempty"`
	FactType   string                 `db:"fact_type" json:"factType"`
	FactValue  map[string]interface{} `db:"fact_value" json:"factValue"`
	Confidence *float64               `db:"confidence" json:"confidence,omitempty"`
	CreatedAt  time.Time              `db:"created_at" json:"createdAt"`
}

const FactTypeTranscriptObservation = "transcript_observation"
