package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinscribe/clinscribe/internal/platform/apierror"
)

type errorEnvelope struct {
	OK        bool         `json:"ok"`
	Error     errorPayload `json:"error"`
	RequestID string       `json:"requestId,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler renders every error through the stable code envelope. Typed
// apierror values keep their code and status; echo HTTP errors keep their
// status with a generic code; anything else is a masked 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid, _ := c.Get("request_id").(string)
		status := http.StatusInternalServerError
		code := apierror.CodeInternal
		message := "an unexpected error occurred"

		if apiErr, ok := apierror.AsError(err); ok {
			status = apiErr.Status
			code = apiErr.Code
			message = apiErr.Message
		} else if httpErr, ok := err.(*echo.HTTPError); ok {
			status = httpErr.Code
			if status < http.StatusInternalServerError {
				code = "REQUEST_ERROR"
				if msg, ok := httpErr.Message.(string); ok {
					message = msg
				}
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("request_id", rid).Msg("request failed")
		}

		_ = c.JSON(status, errorEnvelope{
			OK:        false,
			Error:     errorPayload{Code: code, Message: message},
			RequestID: rid,
		})
	}
}
