package note

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

type stubFacts struct {
	texts []string
}

func (s stubFacts) SessionFactTexts(context.Context, string) ([]string, error) {
	return s.texts, nil
}

type stubSessions struct {
	exists bool
}

func (s stubSessions) SessionExists(context.Context, string) (bool, error) {
	return s.exists, nil
}

func newService(facts []string, sessionExists bool) (*Service, audit.Repository) {
	auditRepo := audit.NewRepoMem()
	svc := NewService(NewRepoMem(), stubFacts{texts: facts}, stubSessions{exists: sessionExists}, auditRepo, zerolog.Nop())
	return svc, auditRepo
}

func TestComposeDraftsFromFacts(t *testing.T) {
	svc, auditRepo := newService([]string{"bp 120/80", "denies chest pain"}, true)
	ctx := context.Background()

	n, err := svc.Compose(ctx, ComposeRequest{SessionID: "sess-1", Division: "medical", NoteFamily: "progress"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if n.Status != StatusDraftCreated {
		t.Errorf("expected draft_created, got %s", n.Status)
	}
	if !strings.Contains(n.Body, "bp 120/80") || !strings.Contains(n.Body, "denies chest pain") {
		t.Errorf("body missing facts: %q", n.Body)
	}

	events, err := auditRepo.ListByNote(ctx, n.NoteID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventNoteComposed {
		t.Errorf("expected one note_composed event, got %d", len(events))
	}
}

func TestComposeWithoutFacts(t *testing.T) {
	svc, _ := newService(nil, true)

	n, err := svc.Compose(context.Background(), ComposeRequest{SessionID: "sess-1", Division: "rehab", NoteFamily: "daily"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(n.Body, "No encounter observations recorded") {
		t.Errorf("expected empty-ledger placeholder, got %q", n.Body)
	}
}

func TestComposeValidation(t *testing.T) {
	svc, _ := newService(nil, true)
	ctx := context.Background()

	cases := []ComposeRequest{
		{SessionID: "", Division: "medical", NoteFamily: "progress"},
		{SessionID: "sess-1", Division: "surgery", NoteFamily: "progress"},
		{SessionID: "sess-1", Division: "bh", NoteFamily: ""},
	}
	for _, req := range cases {
		_, err := svc.Compose(ctx, req)
		apiErr, ok := apierror.AsError(err)
		if !ok || apiErr.Code != apierror.CodeValidation {
			t.Errorf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestComposeMissingSession(t *testing.T) {
	svc, _ := newService(nil, false)

	_, err := svc.Compose(context.Background(), ComposeRequest{SessionID: "ghost", Division: "medical", NoteFamily: "progress"})
	apiErr, ok := apierror.AsError(err)
	if !ok || apiErr.Code != apierror.CodeSessionNotFound {
		t.Errorf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	svc, _ := newService(nil, true)
	ctx := context.Background()

	n, err := svc.Compose(ctx, ComposeRequest{SessionID: "sess-1", Division: "medical", NoteFamily: "progress"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	same, err := svc.Transition(ctx, n.NoteID, StatusDraftCreated)
	if err != nil {
		t.Fatalf("same-status transition should no-op: %v", err)
	}
	if same.Status != StatusDraftCreated {
		t.Errorf("status changed on no-op: %s", same.Status)
	}
}

func TestTransitionIllegal(t *testing.T) {
	svc, _ := newService(nil, true)
	ctx := context.Background()

	n, err := svc.Compose(ctx, ComposeRequest{SessionID: "sess-1", Division: "medical", NoteFamily: "progress"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	_, err = svc.Transition(ctx, n.NoteID, StatusWritebackSucceeded)
	apiErr, ok := apierror.AsError(err)
	if !ok || apiErr.Code != apierror.CodeIllegalNoteTransition {
		t.Errorf("expected ILLEGAL_NOTE_TRANSITION, got %v", err)
	}

	_, err = svc.Transition(ctx, n.NoteID, Status("bogus"))
	apiErr, ok = apierror.AsError(err)
	if !ok || apiErr.Code != apierror.CodeValidation {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestTransitionMissingNote(t *testing.T) {
	svc, _ := newService(nil, true)

	_, err := svc.Transition(context.Background(), uuid.New(), StatusNeedsReview)
	apiErr, ok := apierror.AsError(err)
	if !ok || apiErr.Code != apierror.CodeNoteNotFound {
		t.Errorf("expected NOTE_NOT_FOUND, got %v", err)
	}
}
