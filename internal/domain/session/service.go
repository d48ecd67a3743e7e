package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
	"github.com/clinscribe/clinscribe/internal/platform/queue"
	"github.com/clinscribe/clinscribe/internal/platform/telemetry"
)

var validDivisions = map[string]bool{
	"medical": true,
	"rehab":   true,
	"bh":      true,
}

var validSpeakers = map[string]bool{
	"clinician": true,
	"patient":   true,
	"unknown":   true,
}

type Service struct {
	sessions Repository
	segments SegmentRepository
	queue    queue.FactExtractionQueue
	auditLog audit.Repository
	logger   zerolog.Logger
}

func NewService(sessions Repository, segments SegmentRepository, q queue.FactExtractionQueue, auditLog audit.Repository, logger zerolog.Logger) *Service {
	return &Service{sessions: sessions, segments: segments, queue: q, auditLog: auditLog, logger: logger}
}

type IngestSegment struct {
	SegmentID string `json:"segmentId"`
	Speaker   string `json:"speaker"`
	StartMs   int    `json:"startMs"`
	EndMs     int    `json:"endMs"`
	Text      string `json:"text"`
}

type IngestRequest struct {
	SessionID string          `json:"sessionId"`
	Division  string          `json:"division"`
	Segments  []IngestSegment `json:"segments"`
}

type IngestResult struct {
	SessionID           string `json:"sessionId"`
	Division            string `json:"division"`
	Accepted            int    `json:"accepted"`
	FactExtractionJobID string `json:"factExtractionJobId"`
}

// Ingest upserts the session and its transcript segments, queues background
// fact extraction, and records the enqueue on the audit trail.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" || len(req.SessionID) > 128 {
		return nil, apierror.Validation("sessionId must be 1-128 characters")
	}
	if !validDivisions[req.Division] {
		return nil, apierror.Validation("invalid division: %s", req.Division)
	}
	for i, seg := range req.Segments {
		if strings.TrimSpace(seg.SegmentID) == "" {
			return nil, apierror.Validation("segments[%d].segmentId is required", i)
		}
		if !validSpeakers[seg.Speaker] {
			return nil, apierror.Validation("segments[%d] has invalid speaker: %s", i, seg.Speaker)
		}
		if seg.EndMs < seg.StartMs {
			return nil, apierror.Validation("segments[%d] endMs precedes startMs", i)
		}
	}

	if _, err := s.sessions.Upsert(ctx, req.SessionID, req.Division, StatusIngesting); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	segments := make([]*Segment, len(req.Segments))
	for i, seg := range req.Segments {
		segments[i] = &Segment{
			SessionID: req.SessionID,
			SegmentID: seg.SegmentID,
			Speaker:   seg.Speaker,
			StartMs:   seg.StartMs,
			EndMs:     seg.EndMs,
			Text:      seg.Text,
		}
	}
	accepted, err := s.segments.UpsertMany(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("upsert segments: %w", err)
	}

	enq, err := s.queue.Enqueue(ctx, queue.FactExtractionJob{SessionID: req.SessionID, Division: req.Division})
	if err != nil {
		return nil, fmt.Errorf("enqueue fact extraction: %w", err)
	}
	telemetry.FactExtractionJobs.Inc()

	if err := s.auditLog.Insert(ctx, &audit.Event{
		SessionID: &req.SessionID,
		EventType: audit.EventFactExtractionQueued,
		Actor:     audit.ActorSystem,
		Payload: map[string]interface{}{
			"jobId":        enq.JobID,
			"segmentCount": len(req.Segments),
		},
	}); err != nil {
		return nil, fmt.Errorf("audit fact extraction enqueue: %w", err)
	}

	if err := s.sessions.UpdateStatus(ctx, req.SessionID, StatusFactExtractionQueued); err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}

	s.logger.Info().
		Str("session_id", req.SessionID).
		Int("segments", accepted).
		Msg("transcript ingested")

	return &IngestResult{
		SessionID:           req.SessionID,
		Division:            req.Division,
		Accepted:            accepted,
		FactExtractionJobID: enq.JobID,
	}, nil
}

type StatusResult struct {
	SessionID        string     `json:"sessionId"`
	Division         string     `json:"division"`
	Status           string     `json:"status"`
	SegmentsIngested int        `json:"segmentsIngested"`
	LastIngestedAt   *time.Time `json:"lastIngestedAt"`
	FactExtraction   struct {
		Queued bool `json:"queued"`
	} `json:"factExtraction"`
}

// Status reports ingest progress plus whether fact extraction has been
// queued, derived from the audit trail.
func (s *Service) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apierror.NotFound(apierror.CodeSessionNotFound, "session not found: %s", sessionID)
	}

	count, err := s.segments.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	events, err := s.auditLog.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := &StatusResult{
		SessionID:        sess.SessionID,
		Division:         sess.Division,
		Status:           sess.Status,
		SegmentsIngested: count,
		LastIngestedAt:   sess.LastIngestedAt,
	}
	for _, e := range events {
		if e.EventType == audit.EventFactExtractionQueued {
			res.FactExtraction.Queued = true
			break
		}
	}
	return res, nil
}

// SessionExists implements note.SessionDirectory.
func (s *Service) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}
