package fact

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/domain/session"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
	"github.com/clinscribe/clinscribe/internal/platform/queue"
)

// TranscriptSource supplies the segments extraction runs over.
type TranscriptSource interface {
	ListBySession(ctx context.Context, sessionID string) ([]*session.Segment, error)
}

// SessionStatusSink receives extraction progress for the owning session.
type SessionStatusSink interface {
	GetByID(ctx context.Context, sessionID string) (*session.Session, error)
	UpdateStatus(ctx context.Context, sessionID, status string) error
}

type Service struct {
	facts    Repository
	segments TranscriptSource
	sessions SessionStatusSink
	auditLog audit.Repository
	logger   zerolog.Logger
}

func NewService(facts Repository, segments TranscriptSource, sessions SessionStatusSink, auditLog audit.Repository, logger zerolog.Logger) *Service {
	return &Service{facts: facts, segments: segments, sessions: sessions, auditLog: auditLog, logger: logger}
}

// ExtractSession runs fact extraction for one queued session. Segments that
// already have ledger entries are skipped, so a re-queued session only adds
// facts for segments ingested since the last run.
func (s *Service) ExtractSession(ctx context.Context, job queue.FactExtractionJob) error {
	if err := s.sessions.UpdateStatus(ctx, job.SessionID, session.StatusFactExtractionInProgress); err != nil {
		return fmt.Errorf("mark extraction in progress: %w", err)
	}

	extracted, err := s.extract(ctx, job.SessionID)
	if err != nil {
		if uerr := s.sessions.UpdateStatus(ctx, job.SessionID, session.StatusFactExtractionFailed); uerr != nil {
			s.logger.Error().Err(uerr).Str("session_id", job.SessionID).Msg("mark extraction failed")
		}
		return err
	}

	if err := s.auditLog.Insert(ctx, &audit.Event{
		SessionID: &job.SessionID,
		EventType: audit.EventFactExtractionCompleted,
		Actor:     audit.ActorSystem,
		Payload: map[string]interface{}{
			"jobId":          job.SessionID + ":fact-extract",
			"factsExtracted": extracted,
		},
	}); err != nil {
		return fmt.Errorf("audit extraction completion: %w", err)
	}

	if err := s.sessions.UpdateStatus(ctx, job.SessionID, session.StatusFactExtractionCompleted); err != nil {
		return fmt.Errorf("mark extraction completed: %w", err)
	}

	s.logger.Info().
		Str("session_id", job.SessionID).
		Int("facts", extracted).
		Msg("fact extraction completed")
	return nil
}

func (s *Service) extract(ctx context.Context, sessionID string) (int, error) {
	segments, err := s.segments.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list segments: %w", err)
	}
	seen, err := s.facts.SegmentIDsWithFacts(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list extracted segments: %w", err)
	}

	extracted := 0
	for _, seg := range segments {
		if seen[seg.SegmentID] {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segID := seg.SegmentID
		conf := confidenceFor(seg)
		entry := &Entry{
			SessionID: sessionID,
			SegmentID: &segID,
			FactType:  FactTypeTranscriptObservation,
			FactValue: map[string]interface{}{
				"text":    text,
				"speaker": seg.Speaker,
				"startMs": seg.StartMs,
				"endMs":   seg.EndMs,
			},
			Confidence: &conf,
		}
		if err := s.facts.Insert(ctx, entry); err != nil {
			return extracted, fmt.Errorf("insert fact: %w", err)
		}
		extracted++
	}
	return extracted, nil
}

// Clinician speech is treated as a stronger observation source than patient
// or unattributed speech.
func confidenceFor(seg *session.Segment) float64 {
	switch seg.Speaker {
	case "clinician":
		return 0.9
	case "patient":
		return 0.7
	default:
		return 0.5
	}
}

func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*Entry, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apierror.NotFound(apierror.CodeSessionNotFound, "session not found: %s", sessionID)
	}
	return s.facts.ListBySession(ctx, sessionID)
}

// SessionFactTexts implements note.FactSource.
func (s *Service) SessionFactTexts(ctx context.Context, sessionID string) ([]string, error) {
	entries, err := s.facts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if t, ok := e.FactValue["text"].(string); ok && t != "" {
			texts = append(texts, t)
		}
	}
	return texts, nil
}
