package note

import (
	"time"

	"github.com/google/uuid"
)

// Note is a composed clinical note awaiting validation and writeback.
type Note struct {
	NoteID     uuid.UUID `db:"note_id" json:"noteId"`
	SessionID  string    `db:"session_id" json:"sessionId"`
	Division   string    `db:"division" json:"division"`
	NoteFamily string    `db:"note_family" json:"noteFamily"`
	Body       string    `db:"body" json:"body"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}
