package session

import "time"

// Session tracks one encounter's ingest lifecycle. Session ids are
// caller-supplied opaque identifiers.
type Session struct {
	SessionID      string     `db:"session_id" json:"sessionId"`
	Division       string     `db:"division" json:"division"`
	Status         string     `db:"status" json:"status"`
	LastIngestedAt *time.Time `db:"last_ingested_at" json:"lastIngestedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Segment is one transcript utterance. Upserts are keyed on
// (sessionId, segmentId) so re-ingesting a chunk is idempotent.
type Segment struct {
	SessionID string    `db:"session_id" json:"sessionId"`
	SegmentID string    `db:"segment_id" json:"segmentId"`
	Speaker   string    `db:"speaker" json:"speaker"`
	StartMs   int       `db:"start_ms" json:"startMs"`
	EndMs     int       `db:"end_ms" json:"endMs"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Session ingest statuses.
const (
	StatusIngesting                = "ingesting"
	StatusFactExtractionQueued     = "fact_extraction_queued"
	StatusFactExtractionInProgress = "fact_extraction_in_progress"
	StatusFactExtractionCompleted  = "fact_extraction_completed"
	StatusFactExtractionFailed     = "fact_extraction_failed"
)
