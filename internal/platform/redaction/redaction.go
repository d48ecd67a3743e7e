package redaction

import "strings"

// Redacted replaces the value of any field whose key matches a sensitive
// pattern before a payload crosses the outward boundary. Storage is never
// redacted; this is strictly a presentation concern.
const Redacted = "[REDACTED]"

// sensitiveKeyParts are matched against normalized keys (lowercase,
// alphanumerics only), so "Last-Error-Detail.patientEmail" and
// "patient_email" both hit "email"-adjacent patterns.
var sensitiveKeyParts = []string{
	"authorization",
	"proxyauthorization",
	"apikey",
	"secret",
	"password",
	"token",
	"cookie",
	"ssn",
	"dob",
	"birthdate",
	"patient",
	"firstname",
	"lastname",
	"fullname",
	"email",
	"phone",
	"address",
	"mrn",
	"medicalrecordnumber",
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsSensitiveKey reports whether a map key should be redacted.
func IsSensitiveKey(key string) bool {
	normalized := normalizeKey(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(normalized, part) {
			return true
		}
	}
	return false
}

// Redact deep-copies value, replacing every sensitive-keyed entry with the
// Redacted marker. Maps and slices are walked recursively; scalars pass
// through unchanged. The input is never mutated.
func Redact(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			if IsSensitiveKey(key) {
				out[key] = Redacted
				continue
			}
			out[key] = Redact(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Redact(item)
		}
		return out
	default:
		return value
	}
}

// RedactMap is a convenience wrapper for JSON-object payloads. Nil maps stay
// nil so optional fields keep their omitempty behavior.
func RedactMap(value map[string]interface{}) map[string]interface{} {
	if value == nil {
		return nil
	}
	return Redact(value).(map[string]interface{})
}
