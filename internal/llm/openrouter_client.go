package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codefionn/llmbridge/internal/consts"
	"github.com/codefionn/llmbridge/internal/logger"
)

// openRouterNoToolUseMessage is the substring OpenRouter's marketplace
// router includes in a 404 body when the routed model cannot accept tools.
const openRouterNoToolUseMessage = "No endpoints found that support tool use"

// openRouterHTTPFailure wraps a non-200 response with enough detail
// (status, raw body) to decide whether the tool-capability fallback
// applies, while still presenting as the mapped *Error to callers.
type openRouterHTTPFailure struct {
	status int
	body   []byte
	err    error
}

func (f *openRouterHTTPFailure) Error() string { return f.err.Error() }
func (f *openRouterHTTPFailure) Unwrap() error { return f.err }

func newOpenRouterHTTPFailure(status int, body []byte) *openRouterHTTPFailure {
	return &openRouterHTTPFailure{status: status, body: append([]byte(nil), body...), err: openRouterHTTPError(status, body)}
}

// unwrapOpenRouterFailure returns the mapped *Error carried by an
// openRouterHTTPFailure, or err unchanged when it is not one.
func unwrapOpenRouterFailure(err error) error {
	var failure *openRouterHTTPFailure
	if errors.As(err, &failure) {
		return failure.err
	}
	return err
}

// openRouterNeedsToolFallback reports whether err is the specific
// "model doesn't support tool use" 404 the tool-capability fallback retries.
func openRouterNeedsToolFallback(err error, hadTools bool) bool {
	if !hadTools {
		return false
	}
	var failure *openRouterHTTPFailure
	if !errors.As(err, &failure) {
		return false
	}
	return failure.status == http.StatusNotFound && strings.Contains(string(failure.body), openRouterNoToolUseMessage)
}

// sanitizeOpenRouterRequestForNoTools strips tool-calling from a request so
// it can be retried against a model that rejected the original attempt.
func sanitizeOpenRouterRequestForNoTools(req *LlmRequest) *LlmRequest {
	sanitized := *req
	sanitized.Tools = nil
	sanitized.ToolChoice = ToolChoice{Mode: ToolChoiceNone}

	messages := make([]CanonicalMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleTool:
			messages = append(messages, CanonicalMessage{Role: RoleUser, Content: msg.Content})
		case RoleAssistant:
			stripped := msg
			stripped.ToolCalls = nil
			messages = append(messages, stripped)
		default:
			messages = append(messages, msg)
		}
	}
	sanitized.Messages = messages

	return &sanitized
}

const (
	openRouterAPIBaseURL = "https://openrouter.ai/api/v1"
	openRouterReferer    = "https://github.com/codefionn/llmbridge"
	openRouterAppTitle   = "llmbridge"
)

// OpenRouterClient implements LlmClient using the native OpenRouter API.
type OpenRouterClient struct {
	apiKey        string
	model         string
	baseURL       string
	httpClient    *http.Client
	cacheSettings OpenRouterCacheSettings
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(apiKey, modelID string, cacheSettings OpenRouterCacheSettings) (LlmClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, NewAuthenticationError("OpenRouter", "missing API key")
	}

	model := strings.TrimSpace(modelID)
	if model == "" {
		model = "openai/o3-mini"
	}

	return &OpenRouterClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: openRouterAPIBaseURL,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
		cacheSettings: cacheSettings,
	}, nil
}

func (c *OpenRouterClient) GenerateModelName() string {
	return c.model
}

func (c *OpenRouterClient) Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	if req == nil {
		return nil, NewInvalidRequest("OpenRouter", "request cannot be nil")
	}

	resp, err := c.generateOnce(ctx, req)
	if err == nil {
		return resp, nil
	}

	if !openRouterNeedsToolFallback(err, len(req.Tools) > 0) {
		return nil, unwrapOpenRouterFailure(err)
	}

	logger.Debug("OpenRouter: model %s rejected tool use, retrying without tools", c.model)
	retryResp, retryErr := c.generateOnce(ctx, sanitizeOpenRouterRequestForNoTools(req))
	if retryErr != nil {
		return nil, NewProviderError("OpenRouter", fmt.Sprintf("tool-capability fallback failed: first attempt: %v; retry: %v", err, retryErr), "")
	}
	return retryResp, nil
}

func (c *OpenRouterClient) generateOnce(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	payload, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	logger.Debug("OpenRouter: sending completion request for model %s", c.model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError("OpenRouter", "completion failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newOpenRouterHTTPFailure(resp.StatusCode, body)
	}

	var chatResp openRouterChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, NewProtocolError("OpenRouter", "failed to decode response: "+err.Error())
	}

	logger.Debug("OpenRouter: received response with %d choices, usage: %v", len(chatResp.Choices), chatResp.Usage)

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		logger.Debug("OpenRouter: no valid choices in response, returning stop reason")
		return &LlmResponse{FinishReason: FinishStop}, nil
	}

	first := chatResp.Choices[0]
	content := extractOpenRouterText(first.Message.Content)
	toolCalls := convertOpenRouterResponseToolCalls(first.Message.ToolCalls)

	usage := mapOpenAIUsage(chatResp.Usage)
	if c.cacheSettings.ReportSavings {
		logger.Debug("OpenRouter: cached prompt tokens=%d", usage.CachedPromptTokens)
	}

	return &LlmResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: mapOpenAIFinishReason(first.FinishReason, len(toolCalls) > 0),
		Usage:        usage,
	}, nil
}

func (c *OpenRouterClient) Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	if req == nil {
		return NewInvalidRequest("OpenRouter", "request cannot be nil")
	}

	err := c.streamOnce(ctx, req, onEvent)
	if err == nil {
		return nil
	}

	if !openRouterNeedsToolFallback(err, len(req.Tools) > 0) {
		return unwrapOpenRouterFailure(err)
	}

	logger.Debug("OpenRouter: model %s rejected tool use during streaming, retrying without tools", c.model)
	retryErr := c.streamOnce(ctx, sanitizeOpenRouterRequestForNoTools(req), onEvent)
	if retryErr != nil {
		return NewProviderError("OpenRouter", fmt.Sprintf("tool-capability fallback failed: first attempt: %v; retry: %v", err, retryErr), "")
	}
	return nil
}

func (c *OpenRouterClient) streamOnce(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	payload, err := c.buildChatRequest(req, true)
	if err != nil {
		return err
	}

	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return err
	}

	logger.Debug("OpenRouter: starting stream request for model %s", c.model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return NewNetworkError("OpenRouter", "stream failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newOpenRouterHTTPFailure(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	buffer := make([]byte, 0, consts.BufferSize256KB)
	scanner.Buffer(buffer, consts.BufferSize1MB)

	var contentBuilder strings.Builder
	builder := NewToolCallBuilder()
	finishReason := "stop"
	chunkCount := 0

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
			logger.Debug("OpenRouter: received [DONE] signal after %d chunks", chunkCount)
			break
		}

		var chunk openRouterStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return NewProtocolError("OpenRouter", "failed to decode stream chunk: "+err.Error())
		}
		chunkCount++

		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
			if choice.Delta == nil {
				continue
			}

			text := extractOpenRouterText(choice.Delta.Content)
			if strings.TrimSpace(text) != "" {
				contentBuilder.WriteString(text)
				if err := onEvent(LlmStreamEvent{Kind: StreamToken, Delta: text}); err != nil {
					return err
				}
			}

			for i, tc := range choice.Delta.ToolCalls {
				if tc.Function == nil {
					continue
				}
				builder.AddDelta(i, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
		}
	}

	logger.Debug("OpenRouter: stream completed with %d chunks processed", chunkCount)

	if err := scanner.Err(); err != nil {
		return NewNetworkError("OpenRouter", "stream failed", err)
	}

	toolCalls := builder.Finalize()
	resp2 := &LlmResponse{
		Content:      contentBuilder.String(),
		ToolCalls:    toolCalls,
		FinishReason: mapOpenAIFinishReason(finishReason, len(toolCalls) > 0),
	}
	return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: resp2})
}

func openRouterHTTPError(status int, body []byte) error {
	msg := "status " + http.StatusText(status) + ": " + strings.TrimSpace(string(body))
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return NewAuthenticationError("OpenRouter", "OPENROUTER_API_KEY")
	}
	if status == http.StatusTooManyRequests {
		return NewRateLimitError("OpenRouter", msg)
	}
	return NewProviderError("OpenRouter", msg, "")
}

func (c *OpenRouterClient) buildChatRequest(req *LlmRequest, stream bool) (*openRouterChatRequest, error) {
	logger.Debug("OpenRouter: building chat request for model %s, stream=%v", c.model, stream)

	messages, err := c.convertMessagesToOpenRouter(req)
	if err != nil {
		return nil, err
	}

	logger.Debug("OpenRouter: converted %d messages for request", len(messages))

	payload := &openRouterChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream,
	}

	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		payload.Tools = convertToolDefinitionsToChatWire(req.Tools)
		if c.cacheSettings.PropagateProviderCapabilities {
			logger.Debug("OpenRouter: propagating %d tool definitions with provider capability routing", len(req.Tools))
		}
	}

	return payload, nil
}

// getUnderlyingProvider extracts the underlying provider from an OpenRouter model ID,
// e.g., "mistralai/codestral-2508" -> "mistralai".
func (c *OpenRouterClient) getUnderlyingProvider() string {
	parts := strings.Split(c.model, "/")
	if len(parts) > 1 {
		return strings.ToLower(parts[0])
	}
	return ""
}

// providerSupportsMultipartCache reports whether the underlying provider accepts multipart
// content with cache_control. Mistral, Cerebras, Cohere, DeepSeek etc. reject it with a 422.
func (c *OpenRouterClient) providerSupportsMultipartCache() bool {
	switch c.getUnderlyingProvider() {
	case "openai", "anthropic", "google":
		return true
	default:
		return false
	}
}

func (c *OpenRouterClient) newChatRequest(ctx context.Context, payload *openRouterChatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewInvalidRequest("OpenRouter", "failed to encode payload: "+err.Error())
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewInvalidRequest("OpenRouter", "failed to create request: "+err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterAppTitle)

	return req, nil
}

func (c *OpenRouterClient) convertMessagesToOpenRouter(req *LlmRequest) ([]openRouterChatMessage, error) {
	messages := make([]openRouterChatMessage, 0, len(req.Messages)+1)

	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		sysMsg := openRouterChatMessage{Role: "system"}

		if c.cacheSettings.PropagateProviderCapabilities && c.providerSupportsMultipartCache() {
			sysMsg.Content = []openRouterContentBlock{
				{Type: "text", Text: system, CacheControl: map[string]interface{}{"type": "ephemeral"}},
			}
		} else {
			sysMsg.Content = system
		}

		messages = append(messages, sysMsg)
	}

	for _, msg := range req.Messages {
		role := msg.Role.String()

		oMsg := openRouterChatMessage{
			Role:    role,
			Content: msg.Content,
		}

		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			wire := convertCanonicalToolCallsToWire(msg.ToolCalls)
			if c.getUnderlyingProvider() == "mistralai" {
				wire = removeCallIDFromToolCalls(wire)
			}
			oMsg.ToolCalls = wire
		}

		if msg.Role == RoleTool && msg.ToolCallID != "" {
			oMsg.ToolCallID = msg.ToolCallID
		}

		messages = append(messages, oMsg)
	}

	if len(messages) == 0 {
		return nil, NewInvalidRequest("OpenRouter", "completion requires at least one message")
	}

	return messages, nil
}

func convertOpenRouterResponseToolCalls(toolCalls []openRouterToolCall) []ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	result := make([]ToolCall, 0, len(toolCalls))
	for _, tc := range toolCalls {
		if tc.Function == nil {
			continue
		}
		result = append(result, ToolCall{
			ID:           tc.ID,
			FunctionName: tc.Function.Name,
			Arguments:    tc.Function.Arguments,
		})
	}
	return result
}

// removeCallIDFromToolCalls strips the call_id field from tool calls. Mistral (via
// OpenRouter) rejects call_id and only accepts id.
func removeCallIDFromToolCalls(toolCalls []map[string]interface{}) []map[string]interface{} {
	result := make([]map[string]interface{}, len(toolCalls))
	for i, tc := range toolCalls {
		cleanCall := make(map[string]interface{})
		for k, v := range tc {
			if k != "call_id" {
				cleanCall[k] = v
			}
		}
		result[i] = cleanCall
	}
	return result
}

func extractOpenRouterText(content interface{}) string {
	switch value := content.(type) {
	case nil:
		return ""
	case string:
		return value
	case []interface{}:
		var sb strings.Builder
		for _, part := range value {
			sb.WriteString(extractOpenRouterText(part))
		}
		return sb.String()
	case map[string]interface{}:
		if text, ok := value["text"].(string); ok {
			return text
		}
		if inner, ok := value["content"]; ok {
			return extractOpenRouterText(inner)
		}
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err == nil {
			return extractOpenRouterText(decoded)
		}
	}
	return ""
}

type openRouterChatRequest struct {
	Model       string                   `json:"model"`
	Messages    []openRouterChatMessage  `json:"messages"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	Temperature *float64                 `json:"temperature,omitempty"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
	Stream      bool                     `json:"stream,omitempty"`
}

type openRouterChatMessage struct {
	Role       string                   `json:"role"`
	Content    interface{}              `json:"content"`
	Name       string                   `json:"name,omitempty"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
}

type openRouterContentBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text"`
	CacheControl map[string]interface{} `json:"cache_control,omitempty"`
}

type openRouterChatResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Model   string                 `json:"model"`
	Created int64                  `json:"created"`
	Usage   map[string]interface{} `json:"usage,omitempty"`
	Choices []openRouterChatChoice `json:"choices"`
}

type openRouterChatChoice struct {
	Index        int                            `json:"index"`
	FinishReason string                         `json:"finish_reason"`
	Message      *openRouterChatResponseMessage `json:"message"`
}

type openRouterChatResponseMessage struct {
	Role      string               `json:"role"`
	Content   interface{}          `json:"content"`
	ToolCalls []openRouterToolCall `json:"tool_calls,omitempty"`
}

type openRouterToolCall struct {
	ID       string                  `json:"id,omitempty"`
	Type     string                  `json:"type,omitempty"`
	Function *openRouterToolFunction `json:"function,omitempty"`
}

type openRouterToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openRouterStreamChunk struct {
	ID      string                   `json:"id"`
	Object  string                   `json:"object"`
	Choices []openRouterStreamChoice `json:"choices"`
}

type openRouterStreamChoice struct {
	Index        int                    `json:"index"`
	FinishReason string                 `json:"finish_reason"`
	Delta        *openRouterStreamDelta `json:"delta"`
}

type openRouterStreamDelta struct {
	Role      string               `json:"role"`
	Content   interface{}          `json:"content"`
	ToolCalls []openRouterToolCall `json:"tool_calls,omitempty"`
}
