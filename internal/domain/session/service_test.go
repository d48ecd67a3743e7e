package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
	"github.com/clinscribe/clinscribe/internal/platform/queue"
)

func newService() (*Service, *queue.MemoryFactExtractionQueue, audit.Repository) {
	q := queue.NewMemoryFactExtractionQueue()
	auditRepo := audit.NewRepoMem()
	svc := NewService(NewRepoMem(), NewSegmentRepoMem(), q, auditRepo, zerolog.Nop())
	return svc, q, auditRepo
}

func ingestRequest(sessionID string) IngestRequest {
	return IngestRequest{
		SessionID: sessionID,
		Division:  "medical",
		Segments: []IngestSegment{
			{SegmentID: "seg-1", Speaker: "clinician", StartMs: 0, EndMs: 4000, Text: "How are you feeling today?"},
			{SegmentID: "seg-2", Speaker: "patient", StartMs: 4000, EndMs: 9000, Text: "Much better than last week."},
		},
	}
}

func TestIngestQueuesExtraction(t *testing.T) {
	svc, q, auditRepo := newService()
	ctx := context.Background()

	res, err := svc.Ingest(ctx, ingestRequest("sess-1"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Accepted != 2 {
		t.Errorf("expected 2 accepted segments, got %d", res.Accepted)
	}
	if res.FactExtractionJobID == "" {
		t.Error("expected a fact extraction job id")
	}

	job, ok, err := q.Dequeue(ctx, 0)
	if err != nil || !ok {
		t.Fatalf("expected a queued job, ok=%v err=%v", ok, err)
	}
	if job.SessionID != "sess-1" || job.Division != "medical" {
		t.Errorf("unexpected job: %+v", job)
	}

	events, err := auditRepo.ListBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventFactExtractionQueued {
		t.Fatalf("expected one fact_extraction_queued event, got %d", len(events))
	}
	if events[0].Actor != audit.ActorSystem {
		t.Errorf("expected system actor, got %s", events[0].Actor)
	}
	if events[0].Payload["segmentCount"] != 2 {
		t.Errorf("expected segmentCount=2 in payload, got %v", events[0].Payload["segmentCount"])
	}
}

func TestIngestIsIdempotentPerSegment(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, ingestRequest("sess-1")); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := svc.Ingest(ctx, ingestRequest("sess-1")); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	status, err := svc.Status(ctx, "sess-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SegmentsIngested != 2 {
		t.Errorf("re-ingesting the same chunk should not duplicate segments, got %d", status.SegmentsIngested)
	}
}

func TestIngestValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	bad := []IngestRequest{
		{SessionID: "", Division: "medical"},
		{SessionID: "sess-1", Division: "cardiology"},
		{SessionID: "sess-1", Division: "medical", Segments: []IngestSegment{{SegmentID: "", Speaker: "patient"}}},
		{SessionID: "sess-1", Division: "medical", Segments: []IngestSegment{{SegmentID: "s", Speaker: "narrator"}}},
		{SessionID: "sess-1", Division: "medical", Segments: []IngestSegment{{SegmentID: "s", Speaker: "patient", StartMs: 100, EndMs: 50}}},
	}
	for _, req := range bad {
		_, err := svc.Ingest(ctx, req)
		apiErr, ok := apierror.AsError(err)
		if !ok || apiErr.Code != apierror.CodeValidation {
			t.Errorf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestStatusReportsProgress(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, ingestRequest("sess-1")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	status, err := svc.Status(ctx, "sess-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusFactExtractionQueued {
		t.Errorf("expected fact_extraction_queued, got %s", status.Status)
	}
	if !status.FactExtraction.Queued {
		t.Error("expected factExtraction.queued=true")
	}
	if status.LastIngestedAt == nil {
		t.Error("expected lastIngestedAt to be set")
	}
}

func TestStatusMissingSession(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Status(context.Background(), "ghost")
	apiErr, ok := apierror.AsError(err)
	if !ok || apiErr.Code != apierror.CodeSessionNotFound {
		t.Errorf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestSessionExists(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	ok, err := svc.SessionExists(ctx, "sess-1")
	if err != nil || ok {
		t.Errorf("expected missing session, ok=%v err=%v", ok, err)
	}

	if _, err := svc.Ingest(ctx, ingestRequest("sess-1")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	ok, err = svc.SessionExists(ctx, "sess-1")
	if err != nil || !ok {
		t.Errorf("expected session to exist, ok=%v err=%v", ok, err)
	}
}
