package validation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/domain/note"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

type stubFacts struct{}

func (stubFacts) SessionFactTexts(context.Context, string) ([]string, error) {
	return []string{"observation"}, nil
}

type stubSessions struct{}

func (stubSessions) SessionExists(context.Context, string) (bool, error) {
	return true, nil
}

func newHarness(t *testing.T) (*Service, *note.Service) {
	t.Helper()
	auditRepo := audit.NewRepoMem()
	noteSvc := note.NewService(note.NewRepoMem(), stubFacts{}, stubSessions{}, auditRepo, zerolog.Nop())
	svc := NewService(NewRepoMem(), noteSvc, auditRepo, zerolog.Nop())
	return svc, noteSvc
}

func composeNote(t *testing.T, noteSvc *note.Service) *note.Note {
	t.Helper()
	n, err := noteSvc.Compose(context.Background(), note.ComposeRequest{
		SessionID: "sess-1", Division: "medical", NoteFamily: "progress",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return n
}

func TestEvaluateDecisions(t *testing.T) {
	cases := []struct {
		name         string
		checked      int
		failed       int
		wantDecision string
		wantNote     note.Status
	}{
		{"clean run approves", 100, 0, DecisionApproved, note.StatusApprovedForWriteback},
		{"at approve threshold", 100, 5, DecisionApproved, note.StatusApprovedForWriteback},
		{"middle band needs review", 100, 10, DecisionNeedsReview, note.StatusNeedsReview},
		{"just under block", 100, 24, DecisionNeedsReview, note.StatusNeedsReview},
		{"at block threshold", 100, 25, DecisionBlocked, note.StatusBlocked},
		{"total failure blocks", 10, 10, DecisionBlocked, note.StatusBlocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, noteSvc := newHarness(t)
			n := composeNote(t, noteSvc)

			res, err := svc.Evaluate(context.Background(), EvaluateRequest{
				NoteID: n.NoteID, RulesChecked: tc.checked, RulesFailed: tc.failed,
			})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if res.Decision != tc.wantDecision {
				t.Errorf("decision = %s, want %s", res.Decision, tc.wantDecision)
			}

			got, err := noteSvc.Get(context.Background(), n.NoteID)
			if err != nil {
				t.Fatalf("get note: %v", err)
			}
			if got.Status != tc.wantNote {
				t.Errorf("note status = %s, want %s", got.Status, tc.wantNote)
			}
		})
	}
}

func TestEvaluateValidation(t *testing.T) {
	svc, noteSvc := newHarness(t)
	n := composeNote(t, noteSvc)
	ctx := context.Background()

	cases := []EvaluateRequest{
		{NoteID: uuid.Nil, RulesChecked: 10},
		{NoteID: n.NoteID, RulesChecked: 0},
		{NoteID: n.NoteID, RulesChecked: 10, RulesFailed: -1},
		{NoteID: n.NoteID, RulesChecked: 10, RulesFailed: 11},
	}
	for _, req := range cases {
		_, err := svc.Evaluate(ctx, req)
		apiErr, ok := apierror.AsError(err)
		if !ok || apiErr.Code != apierror.CodeValidation {
			t.Errorf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestEvaluateMissingNote(t *testing.T) {
	svc, _ := newHarness(t)

	_, err := svc.Evaluate(context.Background(), EvaluateRequest{NoteID: uuid.New(), RulesChecked: 10})
	apiErr, ok := apierror.AsError(err)
	if !ok || apiErr.Code != apierror.CodeNoteNotFound {
		t.Errorf("expected NOTE_NOT_FOUND, got %v", err)
	}
}

func TestLatestDecision(t *testing.T) {
	svc, noteSvc := newHarness(t)
	n := composeNote(t, noteSvc)
	ctx := context.Background()

	decision, err := svc.LatestDecision(ctx, n.NoteID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if decision != "" {
		t.Errorf("expected empty decision before gating, got %q", decision)
	}

	if _, err := svc.Evaluate(ctx, EvaluateRequest{NoteID: n.NoteID, RulesChecked: 100, RulesFailed: 0}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	decision, err = svc.LatestDecision(ctx, n.NoteID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if decision != DecisionApproved {
		t.Errorf("expected %s, got %s", DecisionApproved, decision)
	}
}
