package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository is append-only: Insert never mutates prior entries, and the list
// methods return events in ascending createdAt order.
type Repository interface {
	Insert(ctx context.Context, e *Event) error
	ListBySession(ctx context.Context, sessionID string) ([]*Event, error)
	ListByNote(ctx context.Context, noteID uuid.UUID) ([]*Event, error)
}
