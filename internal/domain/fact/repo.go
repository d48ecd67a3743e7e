package fact

import "context"

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListBySession(ctx context.Context, sessionID string) ([]*Entry, error)
	SegmentIDsWithFacts(ctx context.Context, sessionID string) (map[string]bool, error)
}
