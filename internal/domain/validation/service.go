package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/domain/note"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

// Gate thresholds on the rule failure rate. At most 1 in 20 failed rules is
// tolerated for automatic approval; 1 in 4 or worse blocks the note outright.
const (
	approveThreshold = 0.05
	blockThreshold   = 0.25
)

// NoteGate is the slice of the note service the gate drives.
type NoteGate interface {
	Get(ctx context.Context, id uuid.UUID) (*note.Note, error)
	Transition(ctx context.Context, id uuid.UUID, to note.Status) (*note.Note, error)
}

type Service struct {
	results  Repository
	notes    NoteGate
	auditLog audit.Repository
	logger   zerolog.Logger
}

func NewService(results Repository, notes NoteGate, auditLog audit.Repository, logger zerolog.Logger) *Service {
	return &Service{results: results, notes: notes, auditLog: auditLog, logger: logger}
}

type EvaluateRequest struct {
	NoteID        uuid.UUID `json:"noteId"`
	RulesChecked  int       `json:"rulesChecked"`
	RulesFailed   int       `json:"rulesFailed"`
	FailedRuleIDs []string  `json:"failedRuleIds"`
}

// Evaluate records a gate decision for the note and moves the note's status
// to match. The decision is pure arithmetic over the reported rule outcomes.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*Result, error) {
	if req.NoteID == uuid.Nil {
		return nil, apierror.Validation("noteId is required")
	}
	if req.RulesChecked <= 0 {
		return nil, apierror.Validation("rulesChecked must be positive")
	}
	if req.RulesFailed < 0 || req.RulesFailed > req.RulesChecked {
		return nil, apierror.Validation("rulesFailed must be between 0 and rulesChecked")
	}

	n, err := s.notes.Get(ctx, req.NoteID)
	if err != nil {
		return nil, err
	}

	rate := float64(req.RulesFailed) / float64(req.RulesChecked)
	decision := decisionFor(rate)

	res := &Result{
		NoteID:        req.NoteID,
		RulesChecked:  req.RulesChecked,
		RulesFailed:   req.RulesFailed,
		FailureRate:   rate,
		Decision:      decision,
		FailedRuleIDs: req.FailedRuleIDs,
	}
	if res.FailedRuleIDs == nil {
		res.FailedRuleIDs = []string{}
	}

	if _, err := s.notes.Transition(ctx, req.NoteID, note.Status(decision)); err != nil {
		return nil, err
	}
	if err := s.results.Insert(ctx, res); err != nil {
		return nil, fmt.Errorf("insert validation result: %w", err)
	}

	if err := s.auditLog.Insert(ctx, &audit.Event{
		SessionID: &n.SessionID,
		NoteID:    &req.NoteID,
		EventType: audit.EventValidationDecided,
		Actor:     audit.ActorSystem,
		Payload: map[string]interface{}{
			"decision":     decision,
			"rulesChecked": req.RulesChecked,
			"rulesFailed":  req.RulesFailed,
			"failureRate":  rate,
		},
	}); err != nil {
		return nil, fmt.Errorf("audit validation decision: %w", err)
	}

	s.logger.Info().
		Str("note_id", req.NoteID.String()).
		Str("decision", decision).
		Float64("failure_rate", rate).
		Msg("validation gate decided")
	return res, nil
}

func decisionFor(rate float64) string {
	switch {
	case rate <= approveThreshold:
		return DecisionApproved
	case rate >= blockThreshold:
		return DecisionBlocked
	default:
		return DecisionNeedsReview
	}
}

// LatestDecision returns the decision of record for a note, or empty string
// when the note has never been gated.
func (s *Service) LatestDecision(ctx context.Context, noteID uuid.UUID) (string, error) {
	res, err := s.results.LatestByNote(ctx, noteID)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return res.Decision, nil
}
