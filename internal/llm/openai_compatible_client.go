package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/codefionn/llmbridge/internal/consts"
)

// OpenAICompatibleClient implements LlmClient for generic OpenAI-compatible APIs.
// It uses the same JSON payloads as OpenAI's chat completions endpoint and supports optional
// API keys plus custom base URLs.
//
// This client intentionally mirrors OpenAIClient's chat-completions path but delegates HTTP
// calls to arbitrary OpenAI-compatible servers (LocalAI, LM Studio, Groq base, etc.).
type OpenAICompatibleClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompatibleClient constructs a client for an OpenAI-compatible API.
// baseURL must point to the API root (e.g. http://localhost:11434/v1). If apiKey is empty,
// requests are sent without Authorization headers (useful for unsecured local servers).
func NewOpenAICompatibleClient(apiKey, baseURL, modelName string) (LlmClient, error) {
	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, NewInvalidRequest("OpenAICompatible", "model name is required")
	}

	trimmedBase := strings.TrimSpace(baseURL)
	if trimmedBase == "" {
		return nil, NewInvalidRequest("OpenAICompatible", "base URL is required")
	}

	trimmedBase = strings.TrimRight(trimmedBase, "/")

	return &OpenAICompatibleClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: trimmedBase,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *OpenAICompatibleClient) GenerateModelName() string {
	return c.model
}

func (c *OpenAICompatibleClient) Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	if req == nil {
		return nil, NewInvalidRequest("OpenAICompatible", "request cannot be nil")
	}

	payload, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError("OpenAICompatible", "completion failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewProviderError("OpenAICompatible", "status "+http.StatusText(resp.StatusCode)+": "+strings.TrimSpace(string(body)), "")
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, NewProtocolError("OpenAICompatible", "failed to decode response: "+err.Error())
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return &LlmResponse{FinishReason: FinishStop}, nil
	}

	first := chatResp.Choices[0]
	content := extractOpenAIText(first.Message.Content)
	toolCalls := convertOpenAIToolCalls(first.Message.ToolCalls)

	return &LlmResponse{
		Content:      content,
		Reasoning:    extractOpenAIMessageReasoning(first.Message),
		ToolCalls:    toolCalls,
		FinishReason: mapOpenAIFinishReason(first.FinishReason, len(toolCalls) > 0),
		Usage:        mapOpenAIUsage(chatResp.Usage),
	}, nil
}

func (c *OpenAICompatibleClient) Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	if req == nil {
		return NewInvalidRequest("OpenAICompatible", "request cannot be nil")
	}

	payload, err := c.buildChatRequest(req, true)
	if err != nil {
		return err
	}

	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return NewNetworkError("OpenAICompatible", "stream failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return NewProviderError("OpenAICompatible", "status "+http.StatusText(resp.StatusCode)+": "+strings.TrimSpace(string(body)), "")
	}

	scanner := bufio.NewScanner(resp.Body)
	buffer := make([]byte, 0, consts.BufferSize256KB)
	scanner.Buffer(buffer, consts.BufferSize1MB)

	var contentBuilder strings.Builder
	builder := NewToolCallBuilder()
	finishReason := "stop"

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return NewProtocolError("OpenAICompatible", "failed to decode stream chunk: "+err.Error())
		}

		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
			if choice.Delta == nil {
				continue
			}

			text := extractOpenAIText(choice.Delta.Content)
			if strings.TrimSpace(text) != "" {
				contentBuilder.WriteString(text)
				if err := onEvent(LlmStreamEvent{Kind: StreamToken, Delta: text}); err != nil {
					return err
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				builder.AddDelta(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return NewNetworkError("OpenAICompatible", "stream failed", err)
	}

	toolCalls := builder.Finalize()
	resp2 := &LlmResponse{
		Content:      contentBuilder.String(),
		ToolCalls:    toolCalls,
		FinishReason: mapOpenAIFinishReason(finishReason, len(toolCalls) > 0),
	}
	return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: resp2})
}

func (c *OpenAICompatibleClient) buildChatRequest(req *LlmRequest, stream bool) (*openAIChatRequest, error) {
	payload, err := convertRequestToOpenAI(req, c.model, stream, false)
	if err != nil {
		return nil, err
	}

	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}

	return payload, nil
}

func (c *OpenAICompatibleClient) newChatRequest(ctx context.Context, payload *openAIChatRequest) (*http.Request, error) {
	if payload == nil {
		return nil, NewInvalidRequest("OpenAICompatible", "payload cannot be nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewInvalidRequest("OpenAICompatible", "failed to encode payload: "+err.Error())
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewInvalidRequest("OpenAICompatible", "failed to create request: "+err.Error())
	}

	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}
