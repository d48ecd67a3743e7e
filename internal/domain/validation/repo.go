package validation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, r *Result) error
	LatestByNote(ctx context.Context, noteID uuid.UUID) (*Result, error)
}
