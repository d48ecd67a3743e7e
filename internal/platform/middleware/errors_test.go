package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

func renderError(t *testing.T, err error) (int, errorEnvelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-123")

	ErrorHandler(zerolog.Nop())(err, c)

	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return rec.Code, env
}

func TestErrorHandlerAPIError(t *testing.T) {
	status, env := renderError(t, apierror.Conflict(apierror.CodeReplayAlreadyExists, "already replayed"))

	if status != http.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
	if env.OK {
		t.Error("ok must be false on errors")
	}
	if env.Error.Code != apierror.CodeReplayAlreadyExists {
		t.Errorf("expected stable code, got %s", env.Error.Code)
	}
	if env.Error.Message != "already replayed" {
		t.Errorf("unexpected message: %s", env.Error.Message)
	}
	if env.RequestID != "req-123" {
		t.Errorf("expected request id, got %q", env.RequestID)
	}
}

func TestErrorHandlerEchoError(t *testing.T) {
	status, env := renderError(t, echo.NewHTTPError(http.StatusNotFound, "route not found"))

	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if env.Error.Code != "REQUEST_ERROR" {
		t.Errorf("expected REQUEST_ERROR, got %s", env.Error.Code)
	}
}

func TestErrorHandlerMasksInternal(t *testing.T) {
	status, env := renderError(t, errors.New("pq: connection refused"))

	if status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if env.Error.Code != apierror.CodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", env.Error.Code)
	}
	if env.Error.Message == "pq: connection refused" {
		t.Error("internal error details must not leak to the client")
	}
}
