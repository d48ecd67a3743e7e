package writeback

import "strings"

// Classification of a failure reason code.
type Classification string

const (
	ClassRetryable    Classification = "retryable"
	ClassNonRetryable Classification = "non_retryable"
	ClassUnknown      Classification = "unknown"
)

// Reason codes are free-form strings from delivery workers, normalized before
// lookup. Unknown codes fall back to retry-by-attempt-count rather than
// dead-lettering on first sight.
var retryableReasons = map[string]bool{
	"TIMEOUT":             true,
	"RATE_LIMITED":        true,
	"SERVICE_UNAVAILABLE": true,
	"NETWORK_ERROR":       true,
	"CONNECTION_RESET":    true,
}

var nonRetryableReasons = map[string]bool{
	"VALIDATION_ERROR":   true,
	"SCHEMA_VALIDATION":  true,
	"INVALID_PAYLOAD":    true,
	"UNAUTHORIZED":       true,
	"FORBIDDEN":          true,
	"REJECTED_BY_TARGET": true,
}

func normalizeReasonCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Classify buckets a reason code. An empty code classifies as unknown.
func Classify(reasonCode string) Classification {
	code := normalizeReasonCode(reasonCode)
	switch {
	case code == "":
		return ClassUnknown
	case retryableReasons[code]:
		return ClassRetryable
	case nonRetryableReasons[code]:
		return ClassNonRetryable
	default:
		return ClassUnknown
	}
}

// ReasonCodeFromDetail pulls the failure reason out of a worker-supplied
// error detail, preferring the explicit reasonCode field.
func ReasonCodeFromDetail(detail map[string]interface{}) string {
	if detail == nil {
		return ""
	}
	if v, ok := detail["reasonCode"].(string); ok && v != "" {
		return normalizeReasonCode(v)
	}
	if v, ok := detail["code"].(string); ok && v != "" {
		return normalizeReasonCode(v)
	}
	return ""
}

// LastReasonCode derives the reason code of a job's most recent attempt, or
// empty when none carries one.
func LastReasonCode(j *Job) string {
	if len(j.AttemptHistory) == 0 {
		return ""
	}
	return ReasonCodeFromDetail(j.AttemptHistory[len(j.AttemptHistory)-1].ErrorDetail)
}
