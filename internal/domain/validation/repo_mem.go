package validation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMem struct {
	mu      sync.RWMutex
	results []*Result
}

func NewRepoMem() Repository {
	return &repoMem{}
}

func (r *repoMem) Insert(_ context.Context, res *Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.ResultID == uuid.Nil {
		res.ResultID = uuid.New()
	}
	res.CreatedAt = time.Now().UTC()
	cp := *res
	r.results = append(r.results, &cp)
	return nil
}

func (r *repoMem) LatestByNote(_ context.Context, noteID uuid.UUID) (*Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].NoteID == noteID {
			cp := *r.results[i]
			return &cp, nil
		}
	}
	return nil, nil
}
