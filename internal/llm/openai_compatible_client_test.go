package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompatibleClient_UsageData(t *testing.T) {
	// Mock server that returns a response with usage data
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify we're hitting the chat completions endpoint
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}

		response := openAIChatResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Model:   "gpt-3.5-turbo",
			Created: 1234567890,
			Choices: []openAIChatChoice{
				{
					Index:        0,
					FinishReason: "stop",
					Message: &openAIChatMessage{
						Role:    "assistant",
						Content: "Hello, world!",
					},
				},
			},
			Usage: map[string]interface{}{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := &OpenAICompatibleClient{
		apiKey:     "test-key",
		model:      "gpt-3.5-turbo",
		baseURL:    server.URL,
		httpClient: &http.Client{},
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

	// Verify content
	if resp.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", resp.Content)
	}

	// Verify usage data
	if resp.Usage.PromptTokens != 10 {
		t.Errorf("Expected prompt tokens 10, got %d", resp.Usage.PromptTokens)
	}
	if resp.Usage.CompletionTokens != 5 {
		t.Errorf("Expected completion tokens 5, got %d", resp.Usage.CompletionTokens)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected total tokens 15, got %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAICompatibleClient_UsageData_NoUsage(t *testing.T) {
	// Test when usage data is not provided
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := openAIChatResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Model:   "gpt-3.5-turbo",
			Created: 1234567890,
			Choices: []openAIChatChoice{
				{
					Index:        0,
					FinishReason: "stop",
					Message: &openAIChatMessage{
						Role:    "assistant",
						Content: "Hello, world!",
					},
				},
			},
			// No Usage field
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := &OpenAICompatibleClient{
		apiKey:     "test-key",
		model:      "gpt-3.5-turbo",
		baseURL:    server.URL,
		httpClient: &http.Client{},
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

	// Verify content
	if resp.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", resp.Content)
	}

	// Verify usage data is zero-valued when not provided
	if resp.Usage.TotalTokens != 0 || resp.Usage.PromptTokens != 0 || resp.Usage.CompletionTokens != 0 {
		t.Errorf("Expected zero-valued usage, got %+v", resp.Usage)
	}
}
