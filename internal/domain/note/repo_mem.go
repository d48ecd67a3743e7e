package note

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMem struct {
	mu    sync.RWMutex
	notes map[uuid.UUID]*Note
}

func NewRepoMem() Repository {
	return &repoMem{notes: make(map[uuid.UUID]*Note)}
}

func (r *repoMem) Create(_ context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.NoteID == uuid.Nil {
		n.NoteID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	cp := *n
	r.notes[n.NoteID] = &cp
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *repoMem) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok || n.Status != from {
		return false, nil
	}
	n.Status = to
	n.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *repoMem) ListBySession(_ context.Context, sessionID string) ([]*Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Note
	for _, n := range r.notes {
		if n.SessionID == sessionID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
