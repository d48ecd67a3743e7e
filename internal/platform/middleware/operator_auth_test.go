package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

func runOperatorAuth(t *testing.T, cfg OperatorAuthConfig, decorate func(*http.Request)) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/operator/writeback/status/summary", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := OperatorAuth(cfg, zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return handler(c)
}

func operatorToken(t *testing.T, secret, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops-1", "role": role})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func wantAuthError(t *testing.T, err error, code string) {
	t.Helper()
	apiErr, ok := apierror.AsError(err)
	if !ok {
		t.Fatalf("expected apierror, got %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("expected %s, got %s", code, apiErr.Code)
	}
}

func TestOperatorAuthAPIKey(t *testing.T) {
	cfg := OperatorAuthConfig{APIKey: "sekrit"}

	err := runOperatorAuth(t, cfg, func(r *http.Request) { r.Header.Set("X-API-Key", "sekrit") })
	if err != nil {
		t.Errorf("valid api key rejected: %v", err)
	}

	err = runOperatorAuth(t, cfg, func(r *http.Request) { r.Header.Set("X-API-Key", "wrong") })
	wantAuthError(t, err, apierror.CodeUnauthorized)

	err = runOperatorAuth(t, cfg, nil)
	wantAuthError(t, err, apierror.CodeUnauthorized)
}

func TestOperatorAuthJWT(t *testing.T) {
	cfg := OperatorAuthConfig{JWTSecret: "hmac-secret"}

	err := runOperatorAuth(t, cfg, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+operatorToken(t, "hmac-secret", "operator"))
	})
	if err != nil {
		t.Errorf("valid operator token rejected: %v", err)
	}

	err = runOperatorAuth(t, cfg, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+operatorToken(t, "hmac-secret", "clinician"))
	})
	wantAuthError(t, err, apierror.CodeUnauthorized)

	err = runOperatorAuth(t, cfg, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+operatorToken(t, "other-secret", "operator"))
	})
	wantAuthError(t, err, apierror.CodeUnauthorized)
}

func TestOperatorAuthUnconfigured(t *testing.T) {
	// Development allows through with a warning.
	if err := runOperatorAuth(t, OperatorAuthConfig{Dev: true}, nil); err != nil {
		t.Errorf("dev without auth config should allow: %v", err)
	}

	// Anything else refuses service.
	err := runOperatorAuth(t, OperatorAuthConfig{}, nil)
	wantAuthError(t, err, apierror.CodeAuthMisconfigured)
}
