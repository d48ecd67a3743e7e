package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes surfaced in the response envelope. Operator tooling and
// tests assert on these, so they are part of the API contract.
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeSessionNotFound          = "SESSION_NOT_FOUND"
	CodeNoteNotFound             = "NOTE_NOT_FOUND"
	CodeJobNotFound              = "WRITEBACK_JOB_NOT_FOUND"
	CodeNotApproved              = "WRITEBACK_NOT_APPROVED"
	CodeIdempotencyKeyConflict   = "IDEMPOTENCY_KEY_CONFLICT"
	CodeIllegalJobTransition     = "ILLEGAL_JOB_TRANSITION"
	CodeIllegalNoteTransition    = "ILLEGAL_NOTE_TRANSITION"
	CodeReplayRequiresDeadFailed = "REPLAY_REQUIRES_DEAD_FAILED"
	CodeReplayAlreadyExists      = "REPLAY_ALREADY_EXISTS"
	CodeAlreadyAcknowledged      = "ALREADY_ACKNOWLEDGED"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeAuthMisconfigured        = "AUTH_MISCONFIGURED"
	CodeNotFound                 = "NOT_FOUND"
	CodeInternal                 = "INTERNAL_ERROR"
)

// Error is a typed API error carrying a stable code and the HTTP status it
// maps to. Services return these; the echo error handler renders the envelope.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(status int, code, format string, args ...interface{}) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation is a malformed-input error (caller fixes the request).
func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeValidation, format, args...)
}

// NotFound is a missing-entity error with an entity-specific code.
func NotFound(code, format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, code, format, args...)
}

// Conflict signals a race or caller logic error (illegal transition,
// duplicate idempotency key, replay already claimed). Never auto-retried.
func Conflict(code, format string, args ...interface{}) *Error {
	return New(http.StatusConflict, code, format, args...)
}

// PreconditionFailed signals an entity in the wrong upstream state; the
// caller may retry after fixing state.
func PreconditionFailed(code, format string, args ...interface{}) *Error {
	return New(http.StatusUnprocessableEntity, code, format, args...)
}

// AsError unwraps err into *Error if possible.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
