package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// repoMem keeps events in insertion order, which is also ascending createdAt
// order because the slice is append-only.
type repoMem struct {
	mu     sync.RWMutex
	events []*Event
}

func NewRepoMem() Repository {
	return &repoMem{}
}

func (r *repoMem) Insert(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()

	stored := *e
	if e.Payload != nil {
		stored.Payload = make(map[string]interface{}, len(e.Payload))
		for k, v := range e.Payload {
			stored.Payload[k] = v
		}
	}
	r.events = append(r.events, &stored)
	return nil
}

func (r *repoMem) ListBySession(_ context.Context, sessionID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Event
	for _, e := range r.events {
		if e.SessionID != nil && *e.SessionID == sessionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *repoMem) ListByNote(_ context.Context, noteID uuid.UUID) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Event
	for _, e := range r.events {
		if e.NoteID != nil && *e.NoteID == noteID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
