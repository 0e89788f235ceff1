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

// OllamaClient implements LlmClient for the Ollama REST API.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a new Ollama client for the provided model.
func NewOllamaClient(baseURL, model string) (LlmClient, error) {
	normalized := normalizeOllamaBaseURL(baseURL)
	if strings.TrimSpace(model) == "" {
		return nil, NewInvalidRequest("Ollama", "model identifier is required")
	}

	return &OllamaClient{
		baseURL: normalized,
		model:   model,
		client: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *OllamaClient) GenerateModelName() string {
	return c.model
}

func (c *OllamaClient) Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	if req == nil {
		return nil, NewInvalidRequest("Ollama", "request cannot be nil")
	}

	payload, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError("Ollama", "completion failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewProviderError("Ollama", "status "+http.StatusText(resp.StatusCode)+": "+strings.TrimSpace(string(body)), "")
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, NewProtocolError("Ollama", "failed to decode response: "+err.Error())
	}

	content := ""
	var toolCalls []ToolCall
	if chatResp.Message != nil {
		content = chatResp.Message.Content
		toolCalls = convertOllamaToolCalls(chatResp.Message.ToolCalls)
	}

	return &LlmResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: mapOllamaFinishReason(chatResp.DoneReason, chatResp.Done, len(toolCalls) > 0),
	}, nil
}

func (c *OllamaClient) Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	if req == nil {
		return NewInvalidRequest("Ollama", "request cannot be nil")
	}

	payload, err := c.buildChatRequest(req, true)
	if err != nil {
		return err
	}

	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return NewNetworkError("Ollama", "stream failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return NewProviderError("Ollama", "status "+http.StatusText(resp.StatusCode)+": "+strings.TrimSpace(string(body)), "")
	}

	scanner := bufio.NewScanner(resp.Body)
	buffer := make([]byte, 0, consts.BufferSize256KB)
	scanner.Buffer(buffer, consts.BufferSize1MB)

	var contentBuilder strings.Builder
	builder := NewToolCallBuilder()
	doneReason := ""
	done := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event ollamaChatStreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return NewProtocolError("Ollama", "failed to decode stream chunk: "+err.Error())
		}

		if event.Message != nil {
			if strings.TrimSpace(event.Message.Content) != "" {
				contentBuilder.WriteString(event.Message.Content)
				if err := onEvent(LlmStreamEvent{Kind: StreamToken, Delta: event.Message.Content}); err != nil {
					return err
				}
			}
			for i, tc := range event.Message.ToolCalls {
				name, _ := tc["name"].(string)
				argsJSON := stringifyArguments(tc["arguments"])
				builder.AddDelta(i, "", name, argsJSON)
			}
		}

		if event.Done {
			doneReason = event.DoneReason
			done = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return NewNetworkError("Ollama", "stream failed", err)
	}

	toolCalls := builder.Finalize()
	resp2 := &LlmResponse{
		Content:      contentBuilder.String(),
		ToolCalls:    toolCalls,
		FinishReason: mapOllamaFinishReason(doneReason, done, len(toolCalls) > 0),
	}
	return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: resp2})
}

func mapOllamaFinishReason(doneReason string, done bool, hasToolCalls bool) FinishReason {
	if hasToolCalls {
		return FinishToolCalls
	}
	switch strings.TrimSpace(doneReason) {
	case "length":
		return FinishLength
	case "stop", "":
		if done {
			return FinishStop
		}
		return FinishStop
	default:
		return FinishStop
	}
}

func convertOllamaToolCalls(raw []map[string]interface{}) []ToolCall {
	if len(raw) == 0 {
		return nil
	}
	result := make([]ToolCall, 0, len(raw))
	for _, tc := range raw {
		function, _ := tc["function"].(map[string]interface{})
		name := ""
		var args interface{}
		if function != nil {
			name, _ = function["name"].(string)
			args = function["arguments"]
		} else {
			name, _ = tc["name"].(string)
			args = tc["arguments"]
		}
		id, _ := tc["id"].(string)
		result = append(result, ToolCall{ID: id, FunctionName: name, Arguments: stringifyArguments(args)})
	}
	return result
}

func (c *OllamaClient) buildChatRequest(req *LlmRequest, stream bool) (*ollamaChatRequest, error) {
	messages := convertMessagesToOllamaFromUnified(req)

	if len(messages) == 0 {
		return nil, NewInvalidRequest("Ollama", "completion requires at least one message")
	}

	options := make(map[string]interface{})
	if req.Temperature != 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) == 0 {
		options = nil
	}

	var tools []map[string]interface{}
	if len(req.Tools) > 0 {
		tools = convertToolDefinitionsToChatWire(req.Tools)
	}

	return &ollamaChatRequest{
		Model:    c.model,
		Stream:   stream,
		System:   req.SystemPrompt,
		Messages: messages,
		Tools:    tools,
		Options:  options,
	}, nil
}

func convertMessagesToOllamaFromUnified(req *LlmRequest) []ollamaChatMessage {
	messages := make([]ollamaChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		oMsg := ollamaChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		}

		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			oMsg.ToolCalls = convertCanonicalToolCallsToWire(msg.ToolCalls)
		}
		if msg.Role == RoleTool && msg.ToolCallID != "" {
			oMsg.ToolCallID = msg.ToolCallID
		}

		messages = append(messages, oMsg)
	}

	return messages
}

func (c *OllamaClient) newChatRequest(ctx context.Context, payload *ollamaChatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewInvalidRequest("Ollama", "failed to encode request: "+err.Error())
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewInvalidRequest("Ollama", "failed to create request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

type ollamaChatRequest struct {
	Model    string                   `json:"model"`
	Messages []ollamaChatMessage      `json:"messages"`
	Tools    []map[string]interface{} `json:"tools,omitempty"`
	Stream   bool                     `json:"stream"`
	System   string                   `json:"system,omitempty"`
	Options  map[string]interface{}   `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role       string                   `json:"role"`
	Content    string                   `json:"content"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
	Name       string                   `json:"name,omitempty"`
}

type ollamaChatResponse struct {
	Model      string             `json:"model"`
	CreatedAt  string             `json:"created_at"`
	Message    *ollamaChatMessage `json:"message"`
	Done       bool               `json:"done"`
	DoneReason string             `json:"done_reason"`
}

type ollamaChatStreamEvent struct {
	Model      string             `json:"model"`
	CreatedAt  string             `json:"created_at"`
	Message    *ollamaChatMessage `json:"message"`
	Done       bool               `json:"done"`
	DoneReason string             `json:"done_reason"`
}

func normalizeOllamaBaseURL(baseURL string) string {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		return "http://localhost:11434"
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	return strings.TrimRight(url, "/")
}
