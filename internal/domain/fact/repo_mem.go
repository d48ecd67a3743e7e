package fact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMem struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewRepoMem() Repository {
	return &repoMem{}
}

func (r *repoMem) Insert(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *repoMem) ListBySession(_ context.Context, sessionID string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *repoMem) SegmentIDsWithFacts(_ context.Context, sessionID string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool)
	for _, e := range r.entries {
		if e.SessionID == sessionID && e.SegmentID != nil {
			out[*e.SegmentID] = true
		}
	}
	return out, nil
}
