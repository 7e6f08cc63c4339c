package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
)

func TestNewRequest(t *testing.T) {
	env, err := NewRequest("req-1", "search", map[string]interface{}{"q": "golang"})
	if err != nil {
		t.Fatalf("Expected NewRequest to succeed, got error: %v", err)
	}

	if env.Type != TypeRequest {
		t.Errorf("Expected type %q, got %q", TypeRequest, env.Type)
	}
	if env.Request == nil {
		t.Fatal("Expected request payload to be set")
	}
	if env.Request.ID != "req-1" {
		t.Errorf("Expected ID to be 'req-1', got %q", env.Request.ID)
	}
	if env.Request.Method != "search" {
		t.Errorf("Expected method to be 'search', got %q", env.Request.Method)
	}

	var params map[string]interface{}
	if err := json.Unmarshal(env.Request.Params, &params); err != nil {
		t.Fatalf("Failed to decode params: %v", err)
	}
	if params["q"] != "golang" {
		t.Errorf("Expected q to be 'golang', got %v", params["q"])
	}
}

func TestNewRequestNilParams(t *testing.T) {
	env, err := NewRequest("req-1", "ping", nil)
	if err != nil {
		t.Fatalf("Expected NewRequest with nil params to succeed, got error: %v", err)
	}
	if len(env.Request.Params) != 0 {
		t.Errorf("Expected empty params, got %s", string(env.Request.Params))
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	env, err := NewRequest("1", "ping", map[string]interface{}{})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	data, err := Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Failed to decode wire form: %v", err)
	}
	if string(wire["type"]) != `"request"` {
		t.Errorf("Expected type field 'request', got %s", wire["type"])
	}
	if _, ok := wire["data"]; !ok {
		t.Error("Expected wire form to carry a data field")
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	raw := `{"type":"response","data":{"id":"42","result":{"ok":true}}}`

	env, err := Unmarshal([]byte(raw))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if env.Type != TypeResponse {
		t.Errorf("Expected type response, got %q", env.Type)
	}
	if env.CorrelationID() != "42" {
		t.Errorf("Expected correlation id '42', got %q", env.CorrelationID())
	}

	var result map[string]bool
	if err := json.Unmarshal(env.Response.Result, &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result["ok"] {
		t.Error("Expected result.ok to be true")
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"type":"request"`,
		`{"type":"carrier-pigeon","data":{}}`,
		`{"type":"request","data":"not an object"}`,
	}

	for _, raw := range cases {
		_, err := Unmarshal([]byte(raw))
		if err == nil {
			t.Errorf("Expected Unmarshal(%q) to fail", raw)
			continue
		}
		if !errors.IsCategory(err, errors.CategorySerialization) {
			t.Errorf("Expected serialization error for %q, got %v", raw, err)
		}
	}
}

func TestCorrelationID(t *testing.T) {
	req, _ := NewRequest("r1", "ping", nil)
	resp, _ := NewResponse("r1", map[string]bool{"ok": true})
	notif, _ := NewNotification("progress", nil)
	errEnv, _ := NewError("r1", -32000, "boom", nil)

	if req.CorrelationID() != "r1" {
		t.Errorf("Expected request correlation id 'r1', got %q", req.CorrelationID())
	}
	if resp.CorrelationID() != "r1" {
		t.Errorf("Expected response correlation id 'r1', got %q", resp.CorrelationID())
	}
	if errEnv.CorrelationID() != "r1" {
		t.Errorf("Expected error correlation id 'r1', got %q", errEnv.CorrelationID())
	}
	if notif.CorrelationID() != "" {
		t.Errorf("Expected notification to have no correlation id, got %q", notif.CorrelationID())
	}
}

func TestValidateMethod(t *testing.T) {
	valid := []string{"ping", "tools.search", "aussi-en-français", "日本語"}
	for _, method := range valid {
		if err := ValidateMethod(method); err != nil {
			t.Errorf("Expected method %q to validate, got %v", method, err)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("m", MaxMethodLength+1),
		"has\nnewline",
		"has\x00nul",
		"has\ttab",
	}
	for _, method := range invalid {
		if err := ValidateMethod(method); err == nil {
			t.Errorf("Expected method %q to be rejected", method)
		}
	}
}

func TestValidateEnvelope(t *testing.T) {
	good, _ := NewRequest("1", "ping", map[string]string{"k": "v"})
	if err := Validate(good); err != nil {
		t.Fatalf("Expected valid request to pass, got %v", err)
	}

	if err := Validate(nil); err == nil {
		t.Error("Expected nil envelope to fail validation")
	}

	noID := &Envelope{Type: TypeRequest, Request: &Request{Method: "ping"}}
	if err := Validate(noID); err == nil {
		t.Error("Expected request without id to fail validation")
	}

	noPayload := &Envelope{Type: TypeResponse}
	if err := Validate(noPayload); err == nil {
		t.Error("Expected response without payload to fail validation")
	}

	noMessage := &Envelope{Type: TypeError, Error: &ErrorPayload{Code: -32000}}
	if err := Validate(noMessage); err == nil {
		t.Error("Expected error envelope without message to fail validation")
	}
}

func TestValidatePayloadDepth(t *testing.T) {
	nested := strings.Repeat(`{"a":`, MaxPayloadDepth+10) + `1` + strings.Repeat(`}`, MaxPayloadDepth+10)
	env := &Envelope{
		Type:    TypeRequest,
		Request: &Request{ID: "1", Method: "ping", Params: json.RawMessage(nested)},
	}

	err := Validate(env)
	if err == nil {
		t.Fatal("Expected deeply nested payload to be rejected")
	}
	if !errors.IsCategory(err, errors.CategoryValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}

	shallow, _ := NewRequest("1", "ping", map[string]interface{}{
		"a": map[string]interface{}{"b": []interface{}{1, 2, 3}},
	})
	if err := Validate(shallow); err != nil {
		t.Errorf("Expected shallow payload to pass, got %v", err)
	}
}
