package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

// OperatorAuthConfig controls access to operator endpoints. Either a shared
// API key (X-API-Key header) or an HS256 bearer token with role "operator" is
// accepted. In development with neither configured, requests are allowed with
// a one-time warning.
type OperatorAuthConfig struct {
	APIKey    string
	JWTSecret string
	Dev       bool
}

// OperatorAuth guards operator routes.
func OperatorAuth(cfg OperatorAuthConfig, logger zerolog.Logger) echo.MiddlewareFunc {
	var warnOnce sync.Once

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.APIKey == "" && cfg.JWTSecret == "" {
				if cfg.Dev {
					warnOnce.Do(func() {
						logger.Warn().
							Str("path", c.Request().URL.Path).
							Msg("operator auth not configured; allowing request in development")
					})
					return next(c)
				}
				return apierror.New(http.StatusServiceUnavailable, apierror.CodeAuthMisconfigured,
					"operator authentication is not configured for this environment")
			}

			if cfg.APIKey != "" && c.Request().Header.Get("X-API-Key") == cfg.APIKey {
				return next(c)
			}

			if cfg.JWTSecret != "" {
				if actor, ok := operatorFromBearer(c.Request().Header.Get("Authorization"), cfg.JWTSecret); ok {
					c.Set("operator_subject", actor)
					return next(c)
				}
			}

			return apierror.New(http.StatusUnauthorized, apierror.CodeUnauthorized, "invalid operator credentials")
		}
	}
}

func operatorFromBearer(header, secret string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, prefix), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	if role, _ := claims["role"].(string); role != "operator" {
		return "", false
	}

	sub, _ := claims["sub"].(string)
	return sub, true
}
