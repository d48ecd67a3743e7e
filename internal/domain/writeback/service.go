package writeback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/domain/note"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
	"github.com/clinscribe/clinscribe/internal/platform/db"
	"github.com/clinscribe/clinscribe/internal/platform/telemetry"
)

const (
	// DefaultMaxAttempts is how many failures a job survives before it is
	// dead-lettered regardless of reason code.
	DefaultMaxAttempts = 3

	// How many times a transition is recomputed when the conditional write
	// loses to a concurrent transition on the same job.
	transitionRetries = 3

	DefaultSummaryWindowHours = 24
	MaxSummaryWindowHours     = 168
)

// errConcurrentUpdate signals the conditional write missed; the caller
// re-reads and re-resolves.
var errConcurrentUpdate = errors.New("job changed concurrently")

// NoteTransitioner is the slice of the note service the job lifecycle drives.
type NoteTransitioner interface {
	Get(ctx context.Context, id uuid.UUID) (*note.Note, error)
	Transition(ctx context.Context, id uuid.UUID, to note.Status) (*note.Note, error)
}

// ApprovalSource reports the validation gate's decision of record for a note.
type ApprovalSource interface {
	LatestDecision(ctx context.Context, noteID uuid.UUID) (string, error)
}

type Service struct {
	jobs        Repository
	notes       NoteTransitioner
	approvals   ApprovalSource
	auditLog    audit.Repository
	tx          db.TxRunner
	maxAttempts int
	logger      zerolog.Logger
}

func NewService(jobs Repository, notes NoteTransitioner, approvals ApprovalSource, auditLog audit.Repository, tx db.TxRunner, maxAttempts int, logger zerolog.Logger) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		jobs:        jobs,
		notes:       notes,
		approvals:   approvals,
		auditLog:    auditLog,
		tx:          tx,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

type CreateJobRequest struct {
	NoteID         uuid.UUID `json:"noteId"`
	TargetSystem   string    `json:"targetSystem"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

type CreateJobResult struct {
	Job        *Job `json:"job"`
	Idempotent bool `json:"idempotent"`
}

// CreateJob creates a queued job for an approved note. A repeated call with
// the same idempotency key and matching parameters returns the existing job.
// The key lookup is read-before-write; the unique constraint on the key in
// the durable store is the backstop for the race between two first calls.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResult, error) {
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.NoteID == uuid.Nil {
		return nil, apierror.Validation("noteId is required")
	}
	if !validTargetSystems[req.TargetSystem] {
		return nil, apierror.Validation("invalid targetSystem: %s", req.TargetSystem)
	}
	if req.IdempotencyKey == "" || len(req.IdempotencyKey) > 255 {
		return nil, apierror.Validation("idempotencyKey must be 1-255 characters")
	}

	existing, err := s.jobs.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.NoteID != req.NoteID || existing.TargetSystem != req.TargetSystem {
			return nil, apierror.Conflict(apierror.CodeIdempotencyKeyConflict,
				"idempotencyKey %s is already bound to a different note or target", req.IdempotencyKey)
		}
		return &CreateJobResult{Job: existing, Idempotent: true}, nil
	}

	n, err := s.notes.Get(ctx, req.NoteID)
	if err != nil {
		return nil, err
	}
	if n.Status != note.StatusApprovedForWriteback {
		return nil, apierror.PreconditionFailed(apierror.CodeNotApproved,
			"note %s is %s, expected %s", req.NoteID, n.Status, note.StatusApprovedForWriteback)
	}
	decision, err := s.approvals.LatestDecision(ctx, req.NoteID)
	if err != nil {
		return nil, err
	}
	if decision != string(note.StatusApprovedForWriteback) {
		return nil, apierror.PreconditionFailed(apierror.CodeNotApproved,
			"note %s has no approval decision on record", req.NoteID)
	}

	job := &Job{
		NoteID:         req.NoteID,
		TargetSystem:   req.TargetSystem,
		IdempotencyKey: req.IdempotencyKey,
		Status:         StatusQueued,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.notes.Transition(ctx, req.NoteID, note.StatusWritebackQueued); err != nil {
			return err
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return s.auditLog.Insert(ctx, &audit.Event{
			SessionID: &n.SessionID,
			NoteID:    &req.NoteID,
			EventType: audit.EventJobCreated,
			Actor:     audit.ActorSystem,
			Payload: map[string]interface{}{
				"jobId":        job.JobID.String(),
				"targetSystem": job.TargetSystem,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	telemetry.WritebackTransitions.WithLabelValues(string(StatusQueued)).Inc()
	s.logger.Info().
		Str("job_id", job.JobID.String()).
		Str("note_id", req.NoteID.String()).
		Str("target_system", job.TargetSystem).
		Msg("writeback job created")
	return &CreateJobResult{Job: job}, nil
}

type TransitionRequest struct {
	Status          Status                 `json:"status"`
	LastError       *string                `json:"lastError,omitempty"`
	LastErrorDetail map[string]interface{} `json:"lastErrorDetail,omitempty"`
}

// Transition applies a worker-reported outcome. A requested "failed" is
// resolved to retryable_failed or dead_failed from the reason code and the
// attempt count; the job write, the note write and the audit append commit in
// one unit of work. Concurrent transitions on the same job serialize through
// the conditional update, with a bounded re-resolve loop on conflict.
func (s *Service) Transition(ctx context.Context, jobID uuid.UUID, req TransitionRequest) (*Job, error) {
	if !RequestableStatus(req.Status) {
		return nil, apierror.Validation("invalid requested status: %s", req.Status)
	}
	if req.Status == StatusFailed {
		if req.LastError == nil || strings.TrimSpace(*req.LastError) == "" {
			return nil, apierror.Validation("lastError is required when status is failed")
		}
	} else if req.LastError != nil || req.LastErrorDetail != nil {
		return nil, apierror.Validation("lastError and lastErrorDetail are only valid when status is failed")
	}

	var lastErr error
	for i := 0; i < transitionRetries; i++ {
		job, err := s.applyTransition(ctx, jobID, req)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, errConcurrentUpdate) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apierror.Conflict(apierror.CodeIllegalJobTransition,
		"job %s is under concurrent modification: %v", jobID, lastErr)
}

func (s *Service) applyTransition(ctx context.Context, jobID uuid.UUID, req TransitionRequest) (*Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierror.NotFound(apierror.CodeJobNotFound, "writeback job not found: %s", jobID)
	}

	resolved, upd := s.resolve(job, req)
	if !CanTransition(job.Status, resolved) {
		return nil, apierror.Conflict(apierror.CodeIllegalJobTransition,
			"job %s cannot transition from %s to %s (requested %s)", jobID, job.Status, resolved, req.Status)
	}

	var noteBefore, noteAfter note.Status
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.notes.Get(ctx, job.NoteID)
		if err != nil {
			return err
		}
		noteBefore = n.Status

		// The note moves first so a conditional-write miss on the job leaves
		// nothing half-applied after the re-resolve converges.
		updated, err := s.notes.Transition(ctx, job.NoteID, noteStatusFor(resolved))
		if err != nil {
			return err
		}
		noteAfter = updated.Status

		ok, err := s.jobs.UpdateStatus(ctx, job.JobID, job.Status, job.Attempts, upd)
		if err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		if !ok {
			return errConcurrentUpdate
		}

		return s.auditLog.Insert(ctx, &audit.Event{
			NoteID:    &job.NoteID,
			EventType: audit.EventTransitionApplied,
			Actor:     audit.ActorSystem,
			Payload: map[string]interface{}{
				"jobId":            job.JobID.String(),
				"fromStatus":       string(job.Status),
				"requestedStatus":  string(req.Status),
				"resolvedStatus":   string(resolved),
				"attemptsBefore":   job.Attempts,
				"attemptsAfter":    upd.Attempts,
				"noteStatusBefore": string(noteBefore),
				"noteStatusAfter":  string(noteAfter),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	telemetry.WritebackTransitions.WithLabelValues(string(resolved)).Inc()
	if resolved == StatusDeadFailed {
		telemetry.WritebackDeadLetters.Inc()
	}
	s.logger.Info().
		Str("job_id", job.JobID.String()).
		Str("from", string(job.Status)).
		Str("resolved", string(resolved)).
		Int("attempts", upd.Attempts).
		Msg("writeback transition applied")

	return s.jobs.GetByID(ctx, jobID)
}

// resolve maps the requested status to the persisted one. Failures bump the
// attempt count and append to the immutable attempt ledger.
func (s *Service) resolve(job *Job, req TransitionRequest) (Status, StatusUpdate) {
	if req.Status != StatusFailed {
		return req.Status, StatusUpdate{
			Status:          req.Status,
			Attempts:        job.Attempts,
			LastError:       job.LastError,
			LastErrorDetail: job.LastErrorDetail,
		}
	}

	next := job.Attempts + 1
	resolved := StatusRetryableFailed
	if Classify(ReasonCodeFromDetail(req.LastErrorDetail)) == ClassNonRetryable || next >= s.maxAttempts {
		resolved = StatusDeadFailed
	}
	return resolved, StatusUpdate{
		Status:          resolved,
		Attempts:        next,
		LastError:       req.LastError,
		LastErrorDetail: req.LastErrorDetail,
		AppendAttempt: &Attempt{
			Attempt:     next,
			FromStatus:  job.Status,
			ToStatus:    resolved,
			Error:       *req.LastError,
			ErrorDetail: req.LastErrorDetail,
			OccurredAt:  time.Now().UTC(),
		},
	}
}

type ReplayPair struct {
	Original *Job `json:"original"`
	Replay   *Job `json:"replay"`
}

// Replay creates a fresh queued job from a dead letter. The claim on the
// original's replayedJobId is atomic in the store, so under concurrent calls
// exactly one caller wins and the rest observe the existing claim.
func (s *Service) Replay(ctx context.Context, originalJobID uuid.UUID) (*ReplayPair, error) {
	original, err := s.jobs.GetByID(ctx, originalJobID)
	if err != nil {
		return nil, err
	}
	if original == nil || !IsDeadLetter(original.Status) {
		return nil, apierror.NotFound(apierror.CodeJobNotFound,
			"dead-letter job not found: %s", originalJobID)
	}
	if original.Status != StatusDeadFailed {
		return nil, apierror.Conflict(apierror.CodeReplayRequiresDeadFailed,
			"job %s is %s; only dead_failed jobs can be replayed", originalJobID, original.Status)
	}
	if original.ReplayedJobID != nil {
		return nil, apierror.Conflict(apierror.CodeReplayAlreadyExists,
			"job %s was already replayed as %s", originalJobID, original.ReplayedJobID)
	}

	n, err := s.notes.Get(ctx, original.NoteID)
	if err != nil {
		if apiErr, ok := apierror.AsError(err); ok && apiErr.Code == apierror.CodeNoteNotFound {
			return nil, apierror.PreconditionFailed(apierror.CodeNoteNotFound,
				"note %s linked to job %s no longer exists", original.NoteID, originalJobID)
		}
		return nil, err
	}
	if n.Status != note.StatusWritebackQueued && !note.CanTransition(n.Status, note.StatusWritebackQueued) {
		return nil, apierror.Conflict(apierror.CodeIllegalNoteTransition,
			"note %s cannot return to %s from %s", n.NoteID, note.StatusWritebackQueued, n.Status)
	}

	replay := &Job{
		JobID:          uuid.New(),
		NoteID:         original.NoteID,
		TargetSystem:   original.TargetSystem,
		IdempotencyKey: "replay-" + uuid.NewString(),
		Status:         StatusQueued,
		ReplayOfJobID:  &original.JobID,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.notes.Transition(ctx, original.NoteID, note.StatusWritebackQueued); err != nil {
			return err
		}

		res, err := s.jobs.CreateReplay(ctx, originalJobID, replay)
		if err != nil {
			return fmt.Errorf("claim replay: %w", err)
		}
		switch res.Outcome {
		case ReplayCreated:
		case ReplayOriginalMissing:
			return apierror.NotFound(apierror.CodeJobNotFound,
				"dead-letter job not found: %s", originalJobID)
		default:
			return apierror.Conflict(apierror.CodeReplayAlreadyExists,
				"job %s was already replayed", originalJobID)
		}

		return s.auditLog.Insert(ctx, &audit.Event{
			SessionID: &n.SessionID,
			NoteID:    &original.NoteID,
			EventType: audit.EventDeadLetterReplayed,
			Actor:     audit.ActorOperator,
			Payload: map[string]interface{}{
				"originalJobId":  original.JobID.String(),
				"replayJobId":    replay.JobID.String(),
				"originalStatus": string(original.Status),
				"reasonCode":     LastReasonCode(original),
			},
		})
	})
	if err != nil {
		telemetry.WritebackReplays.WithLabelValues("conflict").Inc()
		return nil, err
	}

	telemetry.WritebackReplays.WithLabelValues("created").Inc()
	s.logger.Info().
		Str("original_job_id", original.JobID.String()).
		Str("replay_job_id", replay.JobID.String()).
		Msg("dead letter replayed")

	claimed, err := s.jobs.GetByID(ctx, originalJobID)
	if err != nil {
		return nil, err
	}
	return &ReplayPair{Original: claimed, Replay: replay}, nil
}

// Acknowledge marks a dead letter as seen by an operator. Terminal per job.
func (s *Service) Acknowledge(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || !IsDeadLetter(job.Status) {
		return nil, apierror.NotFound(apierror.CodeJobNotFound,
			"dead-letter job not found: %s", jobID)
	}

	ok, err := s.jobs.UpdateOperatorStatus(ctx, jobID, OperatorStatusOpen, OperatorStatusAcknowledged)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierror.Conflict(apierror.CodeAlreadyAcknowledged,
			"job %s is already acknowledged", jobID)
	}

	if err := s.auditLog.Insert(ctx, &audit.Event{
		NoteID:    &job.NoteID,
		EventType: audit.EventDeadLetterAcknowledged,
		Actor:     audit.ActorOperator,
		Payload:   map[string]interface{}{"jobId": jobID.String()},
	}); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(ctx, jobID)
}

func (s *Service) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierror.NotFound(apierror.CodeJobNotFound, "writeback job not found: %s", jobID)
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Job, int, error) {
	return s.jobs.List(ctx, f)
}

func (s *Service) ListDeadLetters(ctx context.Context, f DeadLetterFilter) ([]*Job, error) {
	if f.Status != "" {
		switch Status(f.Status) {
		case StatusRetryableFailed, StatusDeadFailed, StatusFailed:
		default:
			return nil, apierror.Validation("invalid dead-letter status filter: %s", f.Status)
		}
	}
	jobs, err := s.jobs.ListDeadLetters(ctx, f)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*Job{}
	}
	return jobs, nil
}

// Summary reports current job-status counts plus a failure breakdown windowed
// over the attempt ledger.
func (s *Service) Summary(ctx context.Context, windowHours int) (*Summary, int, error) {
	if windowHours <= 0 {
		windowHours = DefaultSummaryWindowHours
	}
	if windowHours > MaxSummaryWindowHours {
		windowHours = MaxSummaryWindowHours
	}
	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)
	sum, err := s.jobs.StatusSummary(ctx, since)
	if err != nil {
		return nil, 0, err
	}
	return sum, windowHours, nil
}

// DeadLetterTimeline is the correlated audit view for one dead letter.
type DeadLetterTimeline struct {
	Job            *JobView       `json:"job"`
	ReasonCode     string         `json:"reasonCode,omitempty"`
	ReplayLinkage  ReplayLinkage  `json:"replayLinkage"`
	AttemptHistory []Attempt      `json:"attemptHistory"`
	Timeline       []*audit.Event `json:"timeline"`
}

// ReplayLinkage summarizes both directions of the replay chain.
type ReplayLinkage struct {
	HasReplay     bool       `json:"hasReplay"`
	ReplayedJobID *uuid.UUID `json:"replayedJobId,omitempty"`
	IsReplay      bool       `json:"isReplay"`
	ReplayOfJobID *uuid.UUID `json:"replayOfJobId,omitempty"`
}

// JobView is the operator-facing job record. The idempotency key is withheld;
// it is a caller credential, not operator data.
type JobView struct {
	JobID          uuid.UUID `json:"jobId"`
	NoteID         uuid.UUID `json:"noteId"`
	TargetSystem   string    `json:"targetSystem"`
	Status         Status    `json:"status"`
	Attempts       int       `json:"attempts"`
	LastError      *string   `json:"lastError,omitempty"`
	OperatorStatus string    `json:"operatorStatus"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DeadLetterHistory assembles the full operator detail for one dead letter:
// the record, its attempt ledger and the audit events that reference it.
func (s *Service) DeadLetterHistory(ctx context.Context, jobID uuid.UUID) (*DeadLetterTimeline, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || !IsDeadLetter(job.Status) {
		return nil, apierror.NotFound(apierror.CodeJobNotFound,
			"dead-letter job not found: %s", jobID)
	}

	events, err := s.auditLog.ListByNote(ctx, job.NoteID)
	if err != nil {
		return nil, err
	}
	timeline := make([]*audit.Event, 0, len(events))
	for _, e := range events {
		if referencesJob(e, job) {
			timeline = append(timeline, e)
		}
	}

	return &DeadLetterTimeline{
		Job: &JobView{
			JobID:          job.JobID,
			NoteID:         job.NoteID,
			TargetSystem:   job.TargetSystem,
			Status:         job.Status,
			Attempts:       job.Attempts,
			LastError:      job.LastError,
			OperatorStatus: job.OperatorStatus,
			CreatedAt:      job.CreatedAt,
			UpdatedAt:      job.UpdatedAt,
		},
		ReasonCode: LastReasonCode(job),
		ReplayLinkage: ReplayLinkage{
			HasReplay:     job.ReplayedJobID != nil,
			ReplayedJobID: job.ReplayedJobID,
			IsReplay:      job.ReplayOfJobID != nil,
			ReplayOfJobID: job.ReplayOfJobID,
		},
		AttemptHistory: job.AttemptHistory,
		Timeline:       timeline,
	}, nil
}

func referencesJob(e *audit.Event, job *Job) bool {
	ids := []string{job.JobID.String()}
	if job.ReplayOfJobID != nil {
		ids = append(ids, job.ReplayOfJobID.String())
	}
	if job.ReplayedJobID != nil {
		ids = append(ids, job.ReplayedJobID.String())
	}
	for _, key := range []string{"jobId", "originalJobId", "replayJobId"} {
		v, ok := e.Payload[key].(string)
		if !ok {
			continue
		}
		for _, id := range ids {
			if v == id {
				return true
			}
		}
	}
	return false
}
