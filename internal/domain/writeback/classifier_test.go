package writeback

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		code string
		want Classification
	}{
		{"TIMEOUT", ClassRetryable},
		{"RATE_LIMITED", ClassRetryable},
		{"SERVICE_UNAVAILABLE", ClassRetryable},
		{"NETWORK_ERROR", ClassRetryable},
		{"CONNECTION_RESET", ClassRetryable},
		{"VALIDATION_ERROR", ClassNonRetryable},
		{"SCHEMA_VALIDATION", ClassNonRetryable},
		{"INVALID_PAYLOAD", ClassNonRetryable},
		{"UNAUTHORIZED", ClassNonRetryable},
		{"FORBIDDEN", ClassNonRetryable},
		{"REJECTED_BY_TARGET", ClassNonRetryable},
		{"SOMETHING_NEW", ClassUnknown},
		{"", ClassUnknown},

		// Normalization: trim + uppercase before lookup.
		{"  timeout  ", ClassRetryable},
		{"validation_error", ClassNonRetryable},
		{"Rate_Limited", ClassRetryable},
	}
	for _, tc := range cases {
		if got := Classify(tc.code); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestReasonCodeFromDetail(t *testing.T) {
	if got := ReasonCodeFromDetail(nil); got != "" {
		t.Errorf("nil detail: got %q", got)
	}
	if got := ReasonCodeFromDetail(map[string]interface{}{"reasonCode": "timeout"}); got != "TIMEOUT" {
		t.Errorf("reasonCode field: got %q", got)
	}
	if got := ReasonCodeFromDetail(map[string]interface{}{"code": "forbidden"}); got != "FORBIDDEN" {
		t.Errorf("code fallback: got %q", got)
	}
	// reasonCode wins over code.
	detail := map[string]interface{}{"reasonCode": "TIMEOUT", "code": "FORBIDDEN"}
	if got := ReasonCodeFromDetail(detail); got != "TIMEOUT" {
		t.Errorf("precedence: got %q", got)
	}
	if got := ReasonCodeFromDetail(map[string]interface{}{"reasonCode": 42}); got != "" {
		t.Errorf("non-string reasonCode: got %q", got)
	}
}
