package session

import "context"

type Repository interface {
	Upsert(ctx context.Context, sessionID, division, status string) (*Session, error)
	GetByID(ctx context.Context, sessionID string) (*Session, error)
	UpdateStatus(ctx context.Context, sessionID, status string) error
}

type SegmentRepository interface {
	UpsertMany(ctx context.Context, segments []*Segment) (int, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Segment, error)
}
