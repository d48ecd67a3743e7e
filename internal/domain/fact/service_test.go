package fact

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/domain/session"
	"github.com/clinscribe/clinscribe/internal/platform/queue"
)

func newHarness() (*Service, session.Repository, session.SegmentRepository, audit.Repository) {
	sessions := session.NewRepoMem()
	segments := session.NewSegmentRepoMem()
	auditRepo := audit.NewRepoMem()
	svc := NewService(NewRepoMem(), segments, sessions, auditRepo, zerolog.Nop())
	return svc, sessions, segments, auditRepo
}

func seedSession(t *testing.T, sessions session.Repository, segments session.SegmentRepository, sessionID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := sessions.Upsert(ctx, sessionID, "medical", session.StatusFactExtractionQueued); err != nil {
		t.Fatalf("upsert session: %v", err)
	}
	_, err := segments.UpsertMany(ctx, []*session.Segment{
		{SessionID: sessionID, SegmentID: "seg-1", Speaker: "clinician", StartMs: 0, EndMs: 3000, Text: "Vitals stable."},
		{SessionID: sessionID, SegmentID: "seg-2", Speaker: "patient", StartMs: 3000, EndMs: 6000, Text: "Sleeping better."},
		{SessionID: sessionID, SegmentID: "seg-3", Speaker: "unknown", StartMs: 6000, EndMs: 7000, Text: "   "},
	})
	if err != nil {
		t.Fatalf("upsert segments: %v", err)
	}
}

func TestExtractSession(t *testing.T) {
	svc, sessions, segments, auditRepo := newHarness()
	ctx := context.Background()
	seedSession(t, sessions, segments, "sess-1")

	if err := svc.ExtractSession(ctx, queue.FactExtractionJob{SessionID: "sess-1", Division: "medical"}); err != nil {
		t.Fatalf("extract: %v", err)
	}

	// Blank segments produce no facts.
	entries, err := svc.SessionFactTexts(ctx, "sess-1")
	if err != nil {
		t.Fatalf("fact texts: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(entries))
	}

	sess, err := sessions.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != session.StatusFactExtractionCompleted {
		t.Errorf("expected fact_extraction_completed, got %s", sess.Status)
	}

	events, err := auditRepo.ListBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventFactExtractionCompleted {
		t.Fatalf("expected one fact_extraction_completed event, got %d", len(events))
	}
	if events[0].Payload["factsExtracted"] != 2 {
		t.Errorf("expected factsExtracted=2, got %v", events[0].Payload["factsExtracted"])
	}
}

func TestExtractSkipsAlreadyExtractedSegments(t *testing.T) {
	svc, sessions, segments, _ := newHarness()
	ctx := context.Background()
	seedSession(t, sessions, segments, "sess-1")
	job := queue.FactExtractionJob{SessionID: "sess-1", Division: "medical"}

	if err := svc.ExtractSession(ctx, job); err != nil {
		t.Fatalf("first extract: %v", err)
	}
	if err := svc.ExtractSession(ctx, job); err != nil {
		t.Fatalf("second extract: %v", err)
	}

	texts, err := svc.SessionFactTexts(ctx, "sess-1")
	if err != nil {
		t.Fatalf("fact texts: %v", err)
	}
	if len(texts) != 2 {
		t.Errorf("re-running extraction must not duplicate facts, got %d", len(texts))
	}
}

func TestExtractPicksUpNewSegments(t *testing.T) {
	svc, sessions, segments, _ := newHarness()
	ctx := context.Background()
	seedSession(t, sessions, segments, "sess-1")
	job := queue.FactExtractionJob{SessionID: "sess-1", Division: "medical"}

	if err := svc.ExtractSession(ctx, job); err != nil {
		t.Fatalf("first extract: %v", err)
	}

	if _, err := segments.UpsertMany(ctx, []*session.Segment{
		{SessionID: "sess-1", SegmentID: "seg-4", Speaker: "clinician", StartMs: 7000, EndMs: 9000, Text: "Follow up in two weeks."},
	}); err != nil {
		t.Fatalf("upsert new segment: %v", err)
	}
	if err := svc.ExtractSession(ctx, job); err != nil {
		t.Fatalf("second extract: %v", err)
	}

	texts, err := svc.SessionFactTexts(ctx, "sess-1")
	if err != nil {
		t.Fatalf("fact texts: %v", err)
	}
	if len(texts) != 3 {
		t.Errorf("expected 3 facts after incremental ingest, got %d", len(texts))
	}
}

func TestConfidenceBySpeaker(t *testing.T) {
	svc, sessions, segments, _ := newHarness()
	ctx := context.Background()
	seedSession(t, sessions, segments, "sess-1")

	if err := svc.ExtractSession(ctx, queue.FactExtractionJob{SessionID: "sess-1", Division: "medical"}); err != nil {
		t.Fatalf("extract: %v", err)
	}

	entries, err := svc.ListBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, e := range entries {
		if e.Confidence == nil {
			t.Fatalf("expected confidence on every fact")
		}
		speaker := e.FactValue["speaker"]
		switch speaker {
		case "clinician":
			if *e.Confidence != 0.9 {
				t.Errorf("clinician confidence = %v", *e.Confidence)
			}
		case "patient":
			if *e.Confidence != 0.7 {
				t.Errorf("patient confidence = %v", *e.Confidence)
			}
		}
	}
}
