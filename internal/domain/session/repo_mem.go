package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

type repoMem struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRepoMem() Repository {
	return &repoMem{sessions: make(map[string]*Session)}
}

func (r *repoMem) Upsert(_ context.Context, sessionID, division, status string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &Session{SessionID: sessionID, Division: division, CreatedAt: now}
		r.sessions[sessionID] = s
	}
	s.Status = status
	s.LastIngestedAt = &now
	s.UpdatedAt = now

	cp := *s
	return &cp, nil
}

func (r *repoMem) GetByID(_ context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *repoMem) UpdateStatus(_ context.Context, sessionID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.Status = status
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}

type segmentRepoMem struct {
	mu       sync.RWMutex
	segments map[string]map[string]*Segment // sessionID -> segmentID -> segment
}

func NewSegmentRepoMem() SegmentRepository {
	return &segmentRepoMem{segments: make(map[string]map[string]*Segment)}
}

func (r *segmentRepoMem) UpsertMany(_ context.Context, segments []*Segment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, seg := range segments {
		bySession, ok := r.segments[seg.SessionID]
		if !ok {
			bySession = make(map[string]*Segment)
			r.segments[seg.SessionID] = bySession
		}
		cp := *seg
		if existing, ok := bySession[seg.SegmentID]; ok {
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		bySession[seg.SegmentID] = &cp
		count++
	}
	return count, nil
}

func (r *segmentRepoMem) CountBySession(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments[sessionID]), nil
}

func (r *segmentRepoMem) ListBySession(_ context.Context, sessionID string) ([]*Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Segment
	for _, seg := range r.segments[sessionID] {
		cp := *seg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMs < out[j].StartMs })
	return out, nil
}
