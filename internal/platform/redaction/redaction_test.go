package redaction

import "testing"

func TestIsSensitiveKey(t *testing.T) {
	sensitive := []string{
		"authorization", "Authorization", "X-API-Key", "apiKey",
		"patientName", "patient_email", "firstName", "last-name",
		"ssn", "dateOfBirthdate", "mrn", "medicalRecordNumber",
		"accessToken", "sessionCookie", "phoneNumber", "homeAddress",
	}
	for _, key := range sensitive {
		if !IsSensitiveKey(key) {
			t.Errorf("expected %q to be sensitive", key)
		}
	}

	benign := []string{"status", "attempts", "reasonCode", "jobId", "targetSystem", "occurredAt"}
	for _, key := range benign {
		if IsSensitiveKey(key) {
			t.Errorf("expected %q to pass through", key)
		}
	}
}

func TestRedactNestedPayload(t *testing.T) {
	payload := map[string]interface{}{
		"reasonCode": "TIMEOUT",
		"patientName": "Ada Lovelace",
		"response": map[string]interface{}{
			"status":       502,
			"apiKey":       "abc123",
			"errorMessage": "gateway timeout",
		},
		"headers": []interface{}{
			map[string]interface{}{"Authorization": "Bearer xyz"},
		},
	}

	out := RedactMap(payload)

	if out["reasonCode"] != "TIMEOUT" {
		t.Errorf("benign key was altered: %v", out["reasonCode"])
	}
	if out["patientName"] != Redacted {
		t.Errorf("patientName not redacted: %v", out["patientName"])
	}
	resp := out["response"].(map[string]interface{})
	if resp["apiKey"] != Redacted {
		t.Errorf("nested apiKey not redacted: %v", resp["apiKey"])
	}
	if resp["errorMessage"] != "gateway timeout" {
		t.Errorf("nested benign value altered: %v", resp["errorMessage"])
	}
	header := out["headers"].([]interface{})[0].(map[string]interface{})
	if header["Authorization"] != Redacted {
		t.Errorf("header in slice not redacted: %v", header["Authorization"])
	}

	// The input must never be mutated.
	if payload["patientName"] != "Ada Lovelace" {
		t.Error("input payload was mutated")
	}
}

func TestRedactNil(t *testing.T) {
	if out := RedactMap(nil); out != nil {
		t.Errorf("nil map should stay nil, got %v", out)
	}
}
