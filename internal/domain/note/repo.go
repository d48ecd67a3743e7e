package note

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	// UpdateStatus conditionally moves the note from one status to another.
	// It returns false when the note's current status no longer matches,
	// which callers treat as a concurrent-update conflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Note, error)
}
