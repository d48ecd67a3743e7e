package note

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

var validDivisions = map[string]bool{
	"medical": true,
	"rehab":   true,
	"bh":      true,
}

// FactSource supplies the extracted facts a note body is composed from.
type FactSource interface {
	SessionFactTexts(ctx context.Context, sessionID string) ([]string, error)
}

// SessionDirectory confirms the owning session exists before composing.
type SessionDirectory interface {
	SessionExists(ctx context.Context, sessionID string) (bool, error)
}

type Service struct {
	notes    Repository
	facts    FactSource
	sessions SessionDirectory
	auditLog audit.Repository
	logger   zerolog.Logger
}

func NewService(notes Repository, facts FactSource, sessions SessionDirectory, auditLog audit.Repository, logger zerolog.Logger) *Service {
	return &Service{notes: notes, facts: facts, sessions: sessions, auditLog: auditLog, logger: logger}
}

type ComposeRequest struct {
	SessionID  string `json:"sessionId"`
	Division   string `json:"division"`
	NoteFamily string `json:"noteFamily"`
}

// Compose drafts a note from the session's fact ledger. The body template is
// deliberately minimal; richer templating lives upstream of this service.
func (s *Service) Compose(ctx context.Context, req ComposeRequest) (*Note, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.NoteFamily = strings.TrimSpace(req.NoteFamily)

	if req.SessionID == "" || len(req.SessionID) > 128 {
		return nil, apierror.Validation("sessionId must be 1-128 characters")
	}
	if !validDivisions[req.Division] {
		return nil, apierror.Validation("invalid division: %s", req.Division)
	}
	if req.NoteFamily == "" || len(req.NoteFamily) > 64 {
		return nil, apierror.Validation("noteFamily must be 1-64 characters")
	}

	exists, err := s.sessions.SessionExists(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierror.NotFound(apierror.CodeSessionNotFound, "session not found: %s", req.SessionID)
	}

	texts, err := s.facts.SessionFactTexts(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	n := &Note{
		SessionID:  req.SessionID,
		Division:   req.Division,
		NoteFamily: req.NoteFamily,
		Body:       composeBody(req.NoteFamily, texts),
		Status:     StatusDraftCreated,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	if err := s.auditLog.Insert(ctx, &audit.Event{
		SessionID: &n.SessionID,
		NoteID:    &n.NoteID,
		EventType: audit.EventNoteComposed,
		Actor:     audit.ActorSystem,
		Payload: map[string]interface{}{
			"noteFamily": n.NoteFamily,
			"division":   n.Division,
			"factCount":  len(texts),
		},
	}); err != nil {
		return nil, fmt.Errorf("audit note compose: %w", err)
	}

	s.logger.Info().Str("note_id", n.NoteID.String()).Str("session_id", n.SessionID).Msg("note composed")
	return n, nil
}

func composeBody(noteFamily string, texts []string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(noteFamily))
	b.WriteString("\n\n")
	if len(texts) == 0 {
		b.WriteString("No encounter observations recorded.")
		return b.String()
	}
	for _, text := range texts {
		b.WriteString("- ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apierror.NotFound(apierror.CodeNoteNotFound, "note not found: %s", id)
	}
	return n, nil
}

func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*Note, error) {
	return s.notes.ListBySession(ctx, sessionID)
}

// Transition moves the note to the target status through the state machine.
// Moving to the status the note already holds is a no-op, which keeps retried
// writeback transitions idempotent on the note side.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Note, error) {
	if !ValidStatus(to) {
		return nil, apierror.Validation("invalid note status: %s", to)
	}

	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status == to {
		return n, nil
	}
	if !CanTransition(n.Status, to) {
		return nil, apierror.Conflict(apierror.CodeIllegalNoteTransition,
			"note %s cannot transition from %s to %s", id, n.Status, to)
	}

	ok, err := s.notes.UpdateStatus(ctx, id, n.Status, to)
	if err != nil {
		return nil, fmt.Errorf("update note status: %w", err)
	}
	if !ok {
		// A concurrent writer moved the note first. If it landed on the same
		// target the outcome is identical, so converge instead of failing.
		cur, err := s.notes.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur != nil && cur.Status == to {
			return cur, nil
		}
		return nil, apierror.Conflict(apierror.CodeIllegalNoteTransition,
			"note %s status changed concurrently while moving to %s", id, to)
	}

	n.Status = to
	return n, nil
}
