package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
)

func TestOpenRouterHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthentication},
		{"forbidden", http.StatusForbidden, KindAuthentication},
		{"rate limited", http.StatusTooManyRequests, KindRateLimit},
		{"server error", http.StatusInternalServerError, KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := openRouterHTTPError(tt.status, []byte(`{"error":"boom"}`))
			llmErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if llmErr.Kind != tt.want {
				t.Errorf("openRouterHTTPError(%d) kind = %v, want %v", tt.status, llmErr.Kind, tt.want)
			}
		})
	}
}

func TestOpenRouterGenerate(t *testing.T) {
	var callCount atomic.Int32

	successResponse := openRouterChatResponse{
		ID:    "resp-123",
		Model: "test/model",
		Choices: []openRouterChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: &openRouterChatResponseMessage{
					Role:    "assistant",
					Content: "Hello there",
				},
			},
		},
	}

	client := &OpenRouterClient{
		apiKey:  "test-key",
		model:   "openai/gpt-4o",
		baseURL: "http://openrouter.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			callCount.Add(1)
			var payload openRouterChatRequest
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return newTestHTTPResponse(req, http.StatusInternalServerError, "text/plain", err.Error()), nil
			}
			if payload.Model != "openai/gpt-4o" {
				return newTestHTTPResponse(req, http.StatusInternalServerError, "text/plain", "unexpected model"), nil
			}
			body, _ := json.Marshal(successResponse)
			return newTestHTTPResponse(req, http.StatusOK, "application/json", string(body)), nil
		}),
	}

	req := &LlmRequest{
		Messages: []CanonicalMessage{
			{Role: RoleUser, Content: "Hello"},
		},
		Temperature: 1.0,
	}

	resp, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "Hello there" {
		t.Errorf("expected content 'Hello there', got %q", resp.Content)
	}
	if resp.FinishReason != FinishStop {
		t.Errorf("expected FinishStop, got %v", resp.FinishReason)
	}
	if callCount.Load() != 1 {
		t.Errorf("expected 1 HTTP call, got %d", callCount.Load())
	}
}

func TestOpenRouterGenerateToolCalls(t *testing.T) {
	successResponse := openRouterChatResponse{
		Choices: []openRouterChatChoice{
			{
				FinishReason: "tool_calls",
				Message: &openRouterChatResponseMessage{
					Role: "assistant",
					ToolCalls: []openRouterToolCall{
						{ID: "call_1", Type: "function", Function: &openRouterToolFunction{Name: "read_file", Arguments: `{"path":"a.go"}`}},
					},
				},
			},
		},
	}

	client := &OpenRouterClient{
		apiKey:  "test-key",
		model:   "openai/gpt-4o",
		baseURL: "http://openrouter.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			body, _ := json.Marshal(successResponse)
			return newTestHTTPResponse(req, http.StatusOK, "application/json", string(body)), nil
		}),
	}

	req := &LlmRequest{
		Messages: []CanonicalMessage{{Role: RoleUser, Content: "read a.go"}},
		Tools: []ToolDefinition{
			{Name: "read_file", Parameters: map[string]interface{}{"type": "object"}},
		},
	}

	resp, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].FunctionName != "read_file" {
		t.Fatalf("expected read_file tool call, got %+v", resp.ToolCalls)
	}
	if resp.FinishReason != FinishToolCalls {
		t.Errorf("expected FinishToolCalls, got %v", resp.FinishReason)
	}
}

func TestOpenRouterGenerateErrorMapping(t *testing.T) {
	client := &OpenRouterClient{
		apiKey:  "test-key",
		model:   "openai/gpt-4o",
		baseURL: "http://openrouter.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			return newTestHTTPResponse(req, http.StatusUnauthorized, "application/json", `{"error":"bad key"}`), nil
		}),
	}

	req := &LlmRequest{Messages: []CanonicalMessage{{Role: RoleUser, Content: "hi"}}}
	_, err := client.Generate(context.Background(), req)
	if err == nil {
		t.Fatal("expected error")
	}
	llmErr, ok := err.(*Error)
	if !ok || llmErr.Kind != KindAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestOpenRouterStream(t *testing.T) {
	chunk := openRouterStreamChunk{
		ID: "resp-stream-123",
		Choices: []openRouterStreamChoice{
			{
				Index: 0,
				Delta: &openRouterStreamDelta{
					Content: "streamed response",
				},
			},
		},
	}
	chunkJSON, _ := json.Marshal(chunk)
	sseBody := fmt.Sprintf("data: %s\n\ndata: [DONE]\n\n", string(chunkJSON))

	client := &OpenRouterClient{
		apiKey:  "test-key",
		model:   "openai/gpt-4o",
		baseURL: "http://openrouter.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			return newTestHTTPResponse(req, http.StatusOK, "text/event-stream", sseBody), nil
		}),
	}

	req := &LlmRequest{Messages: []CanonicalMessage{{Role: RoleUser, Content: "Hello"}}}

	var tokens []string
	var final *LlmResponse
	err := client.Stream(context.Background(), req, func(event LlmStreamEvent) error {
		switch event.Kind {
		case StreamToken:
			tokens = append(tokens, event.Delta)
		case StreamCompleted:
			final = event.Response
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if strings.Join(tokens, "") != "streamed response" {
		t.Errorf("expected 'streamed response', got %q", strings.Join(tokens, ""))
	}
	if final == nil || final.Content != "streamed response" {
		t.Fatalf("expected final response with accumulated content, got %+v", final)
	}
}

func TestRemoveCallIDFromToolCalls(t *testing.T) {
	input := []map[string]interface{}{
		{"id": "call_1", "call_id": "call_1", "type": "function"},
	}
	result := removeCallIDFromToolCalls(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result))
	}
	if _, exists := result[0]["call_id"]; exists {
		t.Errorf("expected call_id to be stripped")
	}
	if result[0]["id"] != "call_1" {
		t.Errorf("expected id to be preserved")
	}
}

func TestOpenRouterGenerateToolCapabilityFallback(t *testing.T) {
	var calls []openRouterChatRequest

	successResponse := openRouterChatResponse{
		Choices: []openRouterChatChoice{
			{
				FinishReason: "stop",
				Message: &openRouterChatResponseMessage{
					Role:    "assistant",
					Content: "fallback response",
				},
			},
		},
	}

	client := &OpenRouterClient{
		apiKey:  "test-key",
		model:   "some/model-without-tools",
		baseURL: "http://openrouter.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			var payload openRouterChatRequest
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &payload)
			calls = append(calls, payload)

			if len(calls) == 1 {
				return newTestHTTPResponse(req, http.StatusNotFound, "application/json",
					`{"error":"No endpoints found that support tool use"}`), nil
			}
			respBody, _ := json.Marshal(successResponse)
			return newTestHTTPResponse(req, http.StatusOK, "application/json", string(respBody)), nil
		}),
	}

	req := &LlmRequest{
		Messages: []CanonicalMessage{
			{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{{ID: "call_1", FunctionName: "read_file", Arguments: `{}`}}},
			{Role: RoleTool, ToolCallID: "call_1", Content: "file contents"},
			{Role: RoleUser, Content: "summarize"},
		},
		Tools: []ToolDefinition{{Name: "read_file", Parameters: map[string]interface{}{"type": "object"}}},
	}

	resp, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "fallback response" {
		t.Fatalf("expected fallback response content, got %q", resp.Content)
	}
	if len(calls) != 2 {
		t.Fatalf("expected exactly 2 HTTP calls (initial + retry), got %d", len(calls))
	}
	if len(calls[0].Tools) == 0 {
		t.Fatalf("expected first attempt to include tools")
	}
	if len(calls[1].Tools) != 0 {
		t.Fatalf("expected retry to drop tools, got %+v", calls[1].Tools)
	}
	for _, msg := range calls[1].Messages {
		if msg.ToolCallID != "" {
			t.Fatalf("expected retry to convert tool messages to user text, found tool_call_id on %+v", msg)
		}
		if len(msg.ToolCalls) != 0 {
			t.Fatalf("expected retry to strip assistant tool_calls, found %+v", msg.ToolCalls)
		}
	}
}

func TestOpenRouterGenerateToolCapabilityFallbackSecondFailureSurfacesBoth(t *testing.T) {
	client := &OpenRouterClient{
		apiKey:  "test-key",
		model:   "some/model-without-tools",
		baseURL: "http://openrouter.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			return newTestHTTPResponse(req, http.StatusNotFound, "application/json",
				`{"error":"No endpoints found that support tool use"}`), nil
		}),
	}

	req := &LlmRequest{
		Messages: []CanonicalMessage{{Role: RoleUser, Content: "hi"}},
		Tools:    []ToolDefinition{{Name: "read_file"}},
	}

	_, err := client.Generate(context.Background(), req)
	if err == nil {
		t.Fatal("expected error after both attempts fail")
	}
	llmErr, ok := err.(*Error)
	if !ok || llmErr.Kind != KindProvider {
		t.Fatalf("expected combined provider error, got %v", err)
	}
}

func TestOpenRouterGetUnderlyingProvider(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"mistralai/codestral-2508", "mistralai"},
		{"openai/gpt-4o", "openai"},
		{"no-slash-model", ""},
	}
	for _, tt := range tests {
		client := &OpenRouterClient{model: tt.model}
		if got := client.getUnderlyingProvider(); got != tt.want {
			t.Errorf("getUnderlyingProvider(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}
