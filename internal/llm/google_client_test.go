package llm

import (
	"bytes"
	"encoding/base64"
	"reflect"
	"testing"

	genai "google.golang.org/genai"
)

func TestGoogleClient_ToolCallThoughtSignatureRoundTrip(t *testing.T) {
	signature := []byte{0xde, 0xad, 0xbe, 0xef}

	part := genai.NewPartFromFunctionCall("do_stuff", map[string]any{"value": "x"})
	part.Thought = true
	part.ThoughtSignature = signature

	content := genai.NewContentFromParts([]*genai.Part{part}, genai.RoleModel)

	toolCalls := convertToolCallsFromContent(content)
	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(toolCalls))
	}

	tc := toolCalls[0]
	if tc.ThoughtSignature == "" {
		t.Fatalf("expected thought signature to be captured")
	}
	if tc.ThoughtSignature != base64.StdEncoding.EncodeToString(signature) {
		t.Fatalf("expected signature %q, got %q", base64.StdEncoding.EncodeToString(signature), tc.ThoughtSignature)
	}

	assistantMsg, err := convertAssistantMessage(CanonicalMessage{Role: RoleAssistant, ToolCalls: toolCalls})
	if err != nil {
		t.Fatalf("convertAssistantMessage returned error: %v", err)
	}

	if len(assistantMsg.Parts) != 1 {
		t.Fatalf("expected 1 part after round-trip, got %d", len(assistantMsg.Parts))
	}

	resultPart := assistantMsg.Parts[0]
	if !bytes.Equal(resultPart.ThoughtSignature, signature) {
		t.Fatalf("expected signature %v, got %v", signature, resultPart.ThoughtSignature)
	}
	if resultPart.FunctionCall == nil || resultPart.FunctionCall.Name != "do_stuff" {
		t.Fatalf("expected function call to be preserved, got %+v", resultPart.FunctionCall)
	}
}

func TestSanitizeFunctionParametersStripsUnsupportedKeys(t *testing.T) {
	input := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":                 "string",
				"$ref":                 "#/definitions/path",
				"additionalProperties": false,
			},
			"count": map[string]interface{}{
				"type":    "integer",
				"minimum": 0,
				"maximum": 10,
			},
		},
		"additionalProperties": false,
		"definitions":          map[string]interface{}{"path": map[string]interface{}{}},
		"required":             []interface{}{"path"},
	}

	sanitized, ok := sanitizeFunctionParameters(input).(map[string]interface{})
	if !ok {
		t.Fatalf("expected sanitized value to be a map")
	}

	if _, present := sanitized["additionalProperties"]; present {
		t.Fatalf("expected additionalProperties to be stripped at top level")
	}
	if _, present := sanitized["definitions"]; present {
		t.Fatalf("expected definitions to be stripped")
	}

	props, ok := sanitized["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected properties to survive sanitization")
	}
	path, ok := props["path"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested path schema to survive")
	}
	if _, present := path["$ref"]; present {
		t.Fatalf("expected $ref to be stripped at depth")
	}
	if _, present := path["additionalProperties"]; present {
		t.Fatalf("expected additionalProperties to be stripped at depth")
	}
	count, ok := props["count"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested count schema to survive")
	}
	if _, present := count["minimum"]; present {
		t.Fatalf("expected minimum to be stripped at depth")
	}
	if _, present := count["maximum"]; present {
		t.Fatalf("expected maximum to be stripped at depth")
	}
}

func TestSanitizeFunctionParametersIdempotent(t *testing.T) {
	input := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "oneOf": []interface{}{map[string]interface{}{"const": "a"}}},
		},
		"patternProperties": map[string]interface{}{},
	}

	once := sanitizeFunctionParameters(input)
	twice := sanitizeFunctionParameters(once)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected sanitizer to be idempotent, got %#v then %#v", once, twice)
	}
}

func TestGeminiThinkingTierMapping(t *testing.T) {
	tests := []struct {
		model  string
		effort ReasoningEffort
		want   geminiReasoningTier
	}{
		{"gemini-3-flash", ReasoningNone, geminiTierLow},
		{"gemini-3-flash", ReasoningMinimal, geminiTierMinimal},
		{"gemini-3-flash", ReasoningMedium, geminiTierMedium},
		{"gemini-3-flash", ReasoningHigh, geminiTierHigh},
		{"gemini-3-pro", ReasoningMedium, geminiTierHigh},
		{"gemini-2.5-pro", ReasoningLow, geminiTierLow},
		{"gemini-2.5-pro", ReasoningHigh, geminiTierHigh},
		{"gemini-2.0-flash", ReasoningHigh, geminiTierOff},
	}

	for _, tt := range tests {
		if got := geminiThinkingTier(tt.model, tt.effort); got != tt.want {
			t.Errorf("geminiThinkingTier(%q, %v) = %v, want %v", tt.model, tt.effort, got, tt.want)
		}
	}
}
