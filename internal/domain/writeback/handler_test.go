package writeback

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/platform/middleware"
	"github.com/clinscribe/clinscribe/internal/platform/redaction"
)

func newTestServer(h *harness) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	api := e.Group("/api/v1")
	operator := api.Group("/operator")
	NewHandler(h.svc).RegisterRoutes(api, operator)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("unmarshal response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec.Code, out
}

func TestDeadLetterListingHidesIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	e := newTestServer(h)
	h.deadFailedJob(t)

	code, out := doJSON(t, e, http.MethodGet, "/api/v1/operator/writeback/dead-letters", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	items := out["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(items))
	}
	item := items[0].(map[string]interface{})
	if _, present := item["idempotencyKey"]; present {
		t.Error("dead-letter listing must not expose the idempotency key")
	}
	if item["reasonCode"] != "VALIDATION_ERROR" {
		t.Errorf("expected derived reasonCode, got %v", item["reasonCode"])
	}
}

func TestTransitionResponseRedactsErrorDetail(t *testing.T) {
	h := newHarness(t)
	e := newTestServer(h)
	job := h.queuedJob(t)

	body := `{"status":"failed","lastError":"rejected","lastErrorDetail":{"reasonCode":"VALIDATION_ERROR","patientName":"Ada Lovelace"}}`
	code, out := doJSON(t, e, http.MethodPost, "/api/v1/writeback/jobs/"+job.JobID.String()+"/transition", body)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, out)
	}

	detail := out["data"].(map[string]interface{})["lastErrorDetail"].(map[string]interface{})
	if detail["patientName"] != redaction.Redacted {
		t.Errorf("patientName should be redacted, got %v", detail["patientName"])
	}
	if detail["reasonCode"] != "VALIDATION_ERROR" {
		t.Errorf("reasonCode should pass through, got %v", detail["reasonCode"])
	}
}

func TestReplayEndpointReturnsLinkedPair(t *testing.T) {
	h := newHarness(t)
	e := newTestServer(h)
	dead := h.deadFailedJob(t)

	code, out := doJSON(t, e, http.MethodPost, "/api/v1/operator/writeback/dead-letters/"+dead.JobID.String()+"/replay", "")
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", code, out)
	}

	data := out["data"].(map[string]interface{})
	original := data["original"].(map[string]interface{})
	replay := data["replay"].(map[string]interface{})
	if original["replayedJobId"] != replay["jobId"] {
		t.Error("original must link forward to the replay")
	}
	if replay["replayOfJobId"] != original["jobId"] {
		t.Error("replay must link back to the original")
	}
	if replay["status"] != string(StatusQueued) {
		t.Errorf("replay should be queued, got %v", replay["status"])
	}
}

func TestInvalidJobIDRejected(t *testing.T) {
	h := newHarness(t)
	e := newTestServer(h)

	code, _ := doJSON(t, e, http.MethodGet, "/api/v1/writeback/jobs/not-a-uuid", "")
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed job id, got %d", code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	h := newHarness(t)
	e := newTestServer(h)
	h.deadFailedJob(t)

	code, out := doJSON(t, e, http.MethodGet, "/api/v1/operator/writeback/status/summary?sinceHours=48", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	data := out["data"].(map[string]interface{})
	if data["sinceHours"] != float64(48) {
		t.Errorf("expected sinceHours=48, got %v", data["sinceHours"])
	}
	counts := data["countsByStatus"].(map[string]interface{})
	if counts[string(StatusDeadFailed)] != float64(1) {
		t.Errorf("expected 1 dead_failed, got %v", counts[string(StatusDeadFailed)])
	}
}
