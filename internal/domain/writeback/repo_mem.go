package writeback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// repoMem holds all jobs behind one mutex so conditional updates and the
// replay claim are real compare-and-set operations, not read-copy-write.
type repoMem struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*Job
	byIdem map[string]uuid.UUID
}

func NewRepoMem() Repository {
	return &repoMem{
		jobs:   make(map[uuid.UUID]*Job),
		byIdem: make(map[string]uuid.UUID),
	}
}

func copyJob(j *Job) *Job {
	cp := *j
	cp.AttemptHistory = append([]Attempt(nil), j.AttemptHistory...)
	return &cp
}

func (r *repoMem) Create(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j.JobID == uuid.Nil {
		j.JobID = uuid.New()
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	j.OperatorStatus = OperatorStatusOpen
	if j.AttemptHistory == nil {
		j.AttemptHistory = []Attempt{}
	}

	r.jobs[j.JobID] = copyJob(j)
	r.byIdem[j.IdempotencyKey] = j.JobID
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return copyJob(j), nil
}

func (r *repoMem) GetByIdempotencyKey(_ context.Context, key string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byIdem[key]
	if !ok {
		return nil, nil
	}
	return copyJob(r.jobs[id]), nil
}

func (r *repoMem) List(_ context.Context, f ListFilter) ([]*Job, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Job
	for _, j := range r.jobs {
		if f.NoteID != nil && j.NoteID != *f.NoteID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		matched = append(matched, copyJob(j))
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.After(matched[k].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (r *repoMem) ListDeadLetters(_ context.Context, f DeadLetterFilter) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wantStatus := Status(f.Status)
	wantReason := normalizeReasonCode(f.ReasonCode)

	var matched []*Job
	for _, j := range r.jobs {
		if !IsDeadLetter(j.Status) {
			continue
		}
		if wantStatus == StatusRetryableFailed || wantStatus == StatusDeadFailed {
			if j.Status != wantStatus {
				continue
			}
		}
		if wantReason != "" {
			reason := LastReasonCode(j)
			if reason == "" {
				reason = "UNKNOWN"
			}
			if reason != wantReason {
				continue
			}
		}
		matched = append(matched, copyJob(j))
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].UpdatedAt.After(matched[k].UpdatedAt) })
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (r *repoMem) UpdateStatus(_ context.Context, id uuid.UUID, fromStatus Status, fromAttempts int, upd StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status != fromStatus || j.Attempts != fromAttempts {
		return false, nil
	}

	j.Status = upd.Status
	j.Attempts = upd.Attempts
	j.LastError = upd.LastError
	j.LastErrorDetail = upd.LastErrorDetail
	if upd.AppendAttempt != nil {
		j.AttemptHistory = append(j.AttemptHistory, *upd.AppendAttempt)
	}
	j.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *repoMem) UpdateOperatorStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.OperatorStatus != from {
		return false, nil
	}
	j.OperatorStatus = to
	j.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *repoMem) CreateReplay(_ context.Context, originalJobID uuid.UUID, replay *Job) (*ReplayResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	original, ok := r.jobs[originalJobID]
	if !ok {
		return &ReplayResult{Outcome: ReplayOriginalMissing}, nil
	}
	if original.Status != StatusDeadFailed || original.ReplayedJobID != nil {
		return &ReplayResult{Outcome: ReplayAlreadyClaimed, ExistingReplayID: original.ReplayedJobID}, nil
	}

	if replay.JobID == uuid.Nil {
		replay.JobID = uuid.New()
	}
	now := time.Now().UTC()
	replay.CreatedAt = now
	replay.UpdatedAt = now
	replay.OperatorStatus = OperatorStatusOpen
	if replay.AttemptHistory == nil {
		replay.AttemptHistory = []Attempt{}
	}

	claimed := replay.JobID
	original.ReplayedJobID = &claimed
	original.UpdatedAt = now

	r.jobs[replay.JobID] = copyJob(replay)
	r.byIdem[replay.IdempotencyKey] = replay.JobID
	return &ReplayResult{Outcome: ReplayCreated}, nil
}

func (r *repoMem) StatusSummary(_ context.Context, since time.Time) (*Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Summary{
		CountsByStatus: make(map[Status]int),
		RecentFailures: FailureBreakdown{ByReasonCode: make(map[string]int)},
	}
	for _, j := range r.jobs {
		s.CountsByStatus[j.Status]++
		if IsDeadLetter(j.Status) {
			switch j.OperatorStatus {
			case OperatorStatusOpen:
				s.DeadLetters.Open++
			case OperatorStatusAcknowledged:
				s.DeadLetters.Acknowledged++
			}
		}
		for _, a := range j.AttemptHistory {
			if a.OccurredAt.Before(since) {
				continue
			}
			reason := ReasonCodeFromDetail(a.ErrorDetail)
			if reason == "" {
				reason = "UNKNOWN"
			}
			s.RecentFailures.ByReasonCode[reason]++
			s.RecentFailures.Total++
			switch Classify(reason) {
			case ClassRetryable:
				s.RecentFailures.Retryable++
			case ClassNonRetryable:
				s.RecentFailures.NonRetryable++
			default:
				s.RecentFailures.Unknown++
			}
		}
	}
	return s, nil
}
