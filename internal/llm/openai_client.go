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
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements LlmClient using OpenAI's native APIs.
type OpenAIClient struct {
	apiKey          string
	model           string
	baseURL         string
	httpClient      *http.Client
	useResponses    bool
	responsesClient *openai.Client
	cacheSettings   OpenAICacheSettings
}

// NewOpenAIClient constructs a client that talks directly to the OpenAI API.
func NewOpenAIClient(apiKey, modelName string, cacheSettings OpenAICacheSettings) (LlmClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, NewAuthenticationError("OpenAI", "missing API key")
	}

	model := strings.TrimSpace(modelName)
	if model == "" {
		model = "gpt-5.1-codex"
	}

	client := &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
		cacheSettings: cacheSettings,
	}

	if requiresResponsesAPI(model) {
		apiClient := openai.NewClient(option.WithAPIKey(apiKey))
		client.useResponses = true
		client.responsesClient = &apiClient
	}

	return client, nil
}

func (c *OpenAIClient) GenerateModelName() string {
	return c.model
}

func (c *OpenAIClient) Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	if req == nil {
		return nil, NewInvalidRequest("OpenAI", "request cannot be nil")
	}

	if c.useResponses {
		return c.completeWithResponses(ctx, req)
	}
	return c.completeWithChat(ctx, req)
}

func (c *OpenAIClient) Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	if req == nil {
		return NewInvalidRequest("OpenAI", "request cannot be nil")
	}

	if c.useResponses {
		return c.streamWithResponses(ctx, req, onEvent)
	}
	return c.streamWithChat(ctx, req, onEvent)
}

func (c *OpenAIClient) completeWithChat(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
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
		return nil, NewNetworkError("OpenAI", "completion failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, chatHTTPError(resp.StatusCode, body)
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, NewProtocolError("OpenAI", "failed to decode response: "+err.Error())
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

func chatHTTPError(status int, body []byte) error {
	msg := "status " + http.StatusText(status) + ": " + strings.TrimSpace(string(body))
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return NewAuthenticationError("OpenAI", "OPENAI_API_KEY")
	}
	if status == http.StatusTooManyRequests {
		return NewRateLimitError("OpenAI", msg)
	}
	return NewProviderError("OpenAI", msg, "")
}

func mapOpenAIFinishReason(reason string, hasToolCalls bool) FinishReason {
	if hasToolCalls {
		return FinishToolCalls
	}
	switch reason {
	case "length":
		return FinishLength
	case "content_filter":
		return FinishContentFilter
	case "tool_calls", "function_call":
		return FinishToolCalls
	default:
		return FinishStop
	}
}

func mapOpenAIUsage(raw map[string]interface{}) Usage {
	var u Usage
	if raw == nil {
		return u
	}
	if v, ok := raw["prompt_tokens"].(float64); ok {
		u.PromptTokens = int(v)
	}
	if v, ok := raw["completion_tokens"].(float64); ok {
		u.CompletionTokens = int(v)
	}
	if v, ok := raw["total_tokens"].(float64); ok {
		u.TotalTokens = int(v)
	}
	if details, ok := raw["prompt_tokens_details"].(map[string]interface{}); ok {
		if v, ok := details["cached_tokens"].(float64); ok {
			u.CachedPromptTokens = int(v)
		}
	}
	return u
}

func (c *OpenAIClient) streamWithChat(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
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
		return NewNetworkError("OpenAI", "stream failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return chatHTTPError(resp.StatusCode, body)
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
			return NewProtocolError("OpenAI", "failed to decode stream chunk: "+err.Error())
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
		return NewNetworkError("OpenAI", "stream failed", err)
	}

	toolCalls := builder.Finalize()
	resp2 := &LlmResponse{
		Content:      contentBuilder.String(),
		ToolCalls:    toolCalls,
		FinishReason: mapOpenAIFinishReason(finishReason, len(toolCalls) > 0),
	}
	return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: resp2})
}

func (c *OpenAIClient) buildChatRequest(req *LlmRequest, stream bool) (*openAIChatRequest, error) {
	payload, err := convertRequestToOpenAI(req, c.model, stream, true)
	if err != nil {
		return nil, err
	}

	if req.Temperature != 0 && !isOpenAITemperatureUnsupported(c.model) {
		temp := req.Temperature
		payload.Temperature = &temp
	} else if isOpenAITemperatureUnsupported(c.model) {
		one := 1.0
		payload.Temperature = &one
	}

	return payload, nil
}

func (c *OpenAIClient) newChatRequest(ctx context.Context, payload *openAIChatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewInvalidRequest("OpenAI", "failed to encode payload: "+err.Error())
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewInvalidRequest("OpenAI", "failed to create request: "+err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (c *OpenAIClient) completeWithResponses(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	if c.responsesClient == nil {
		return nil, NewProviderError("OpenAI", "responses client not configured", "")
	}

	params, err := c.buildResponsesParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := performResponsesCompletion(ctx, c.responsesClient, params)
	if err != nil {
		return nil, NewNetworkError("OpenAI", "completion failed", err)
	}

	return resp, nil
}

func (c *OpenAIClient) streamWithResponses(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	if c.responsesClient == nil {
		return NewProviderError("OpenAI", "responses client not configured", "")
	}

	params, err := c.buildResponsesParams(req)
	if err != nil {
		return err
	}

	if err := performResponsesStream(ctx, c.responsesClient, params, onEvent); err != nil {
		return NewNetworkError("OpenAI", "stream failed", err)
	}
	return nil
}

func (c *OpenAIClient) buildResponsesParams(req *LlmRequest) (responses.ResponseNewParams, error) {
	inputItems, err := buildResponsesInput(req.Messages)
	if err != nil {
		return responses.ResponseNewParams{}, err
	}

	if len(inputItems) == 0 {
		return responses.ResponseNewParams{}, NewInvalidRequest("OpenAI", "no messages provided")
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
	}

	isCodex := isGPT5Codex(c.model)

	effort := req.ReasoningEffort
	if isCodex {
		params.Instructions = openai.String(buildCodexInstructions(req.SystemPrompt))
		if effort == ReasoningNone {
			effort = ReasoningMedium
		}
	} else if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}

	if supportsOpenAIReasoningEffort(c.model) {
		if level, ok := openAIReasoningEffortParam(effort); ok {
			params.Reasoning = shared.ReasoningParam{Effort: shared.ReasoningEffort(level)}
		}
	}

	if req.Temperature != 0 && !isOpenAITemperatureUnsupported(c.model) {
		params.Temperature = openai.Float(req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		params.Tools = convertResponsesTools(req.Tools)
	}

	return params, nil
}

// codexDeveloperPrompt is the fixed identity the Responses API requires for
// GPT-5 Codex models in place of an ordinary system prompt.
const codexDeveloperPrompt = "You are Codex, an automated coding agent operating inside a terminal. " +
	"Work directly in the repository using the available tools, prefer minimal targeted diffs, " +
	"and verify changes before reporting them as complete."

// buildCodexInstructions synthesizes the developer prompt GPT-5 Codex expects,
// folding any caller-provided system prompt in as additional guidance.
func buildCodexInstructions(systemPrompt string) string {
	instructions := codexDeveloperPrompt
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		instructions += "\n\nAdditional guidance:\n" + trimmed
	}
	return instructions
}

func isGPT5Codex(model string) bool {
	return strings.Contains(strings.ToLower(model), "codex")
}

// openAIReasoningEffortParam maps the canonical reasoning effort onto the
// Responses API's three-level scale. Minimal collapses to low; None yields
// no reasoning param at all.
func openAIReasoningEffortParam(effort ReasoningEffort) (string, bool) {
	switch effort {
	case ReasoningMinimal, ReasoningLow:
		return "low", true
	case ReasoningMedium:
		return "medium", true
	case ReasoningHigh, ReasoningXHigh:
		return "high", true
	default:
		return "", false
	}
}

func convertMessagesToOpenAIFromUnified(req *LlmRequest, includeReasoning bool) ([]openAIChatMessage, error) {
	messages := make([]openAIChatMessage, 0, len(req.Messages)+1)

	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: system})
	}

	for _, msg := range req.Messages {
		role := msg.Role.String()

		oMsg := openAIChatMessage{
			Role:    role,
			Content: msg.Content,
		}

		if includeReasoning && msg.Reasoning != "" {
			reasoningContent := msg.Reasoning
			oMsg.Reasoning = msg.Reasoning
			if role == "assistant" {
				oMsg.ReasoningContent = &reasoningContent
			}
		}

		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			oMsg.ToolCalls = convertCanonicalToolCallsToWire(msg.ToolCalls)
		}

		if msg.Role == RoleTool && msg.ToolCallID != "" {
			oMsg.ToolCallID = msg.ToolCallID
		}

		messages = append(messages, oMsg)
	}

	if len(messages) == 0 {
		return nil, NewInvalidRequest("OpenAI", "completion requires at least one message")
	}

	return messages, nil
}

func convertCanonicalToolCallsToWire(calls []ToolCall) []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(calls))
	for _, tc := range calls {
		result = append(result, map[string]interface{}{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      tc.FunctionName,
				"arguments": tc.Arguments,
			},
		})
	}
	return NormalizeToolCallIDs(result)
}

func convertOpenAIToolCalls(toolCalls []map[string]interface{}) []ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}

	result := make([]ToolCall, 0, len(toolCalls))
	for _, tc := range toolCalls {
		if tc == nil {
			continue
		}
		id, _ := tc["id"].(string)
		function, _ := tc["function"].(map[string]interface{})
		if function == nil {
			continue
		}
		name, _ := function["name"].(string)
		args := stringifyArguments(function["arguments"])

		result = append(result, ToolCall{ID: id, FunctionName: name, Arguments: args})
	}

	return result
}

func extractOpenAIText(content interface{}) string {
	switch value := content.(type) {
	case nil:
		return ""
	case string:
		return value
	case []interface{}:
		var sb strings.Builder
		for _, part := range value {
			sb.WriteString(extractOpenAIText(part))
		}
		return sb.String()
	case map[string]interface{}:
		if text, ok := value["text"].(string); ok {
			return text
		}
		if inner, ok := value["content"]; ok {
			return extractOpenAIText(inner)
		}
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err == nil {
			return extractOpenAIText(decoded)
		}
	}
	return ""
}

func extractOpenAIReasoning(content interface{}) string {
	switch value := content.(type) {
	case []interface{}:
		var reasoning strings.Builder
		for _, part := range value {
			if partMap, ok := part.(map[string]interface{}); ok {
				if r, ok := partMap["reasoning"].(string); ok {
					reasoning.WriteString(r)
				}
				if t, ok := partMap["thinking"].(string); ok {
					reasoning.WriteString(t)
				}
				if partType, ok := partMap["type"].(string); ok && (partType == "reasoning" || partType == "thinking") {
					if text, ok := partMap["text"].(string); ok {
						reasoning.WriteString(text)
					} else if inner, ok := partMap["content"]; ok {
						reasoning.WriteString(extractOpenAIText(inner))
					}
				}
			}
		}
		return reasoning.String()
	}
	return ""
}

func extractOpenAIMessageReasoning(msg *openAIChatMessage) string {
	if msg == nil {
		return ""
	}
	if msg.Reasoning != "" {
		return msg.Reasoning
	}
	if msg.Thinking != "" {
		return msg.Thinking
	}
	if msg.ReasoningContent != nil && *msg.ReasoningContent != "" {
		return *msg.ReasoningContent
	}
	if msg.ThinkingContent != nil && *msg.ThinkingContent != "" {
		return *msg.ThinkingContent
	}
	return extractOpenAIReasoning(msg.Content)
}

type openAIChatRequest struct {
	Model       string                   `json:"model"`
	Messages    []openAIChatMessage      `json:"messages"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	Temperature *float64                 `json:"temperature,omitempty"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
	Stream      bool                     `json:"stream,omitempty"`
}

type openAIChatMessage struct {
	Role             string                   `json:"role"`
	Content          interface{}              `json:"content"`
	Reasoning        string                   `json:"reasoning,omitempty"`
	Thinking         string                   `json:"thinking,omitempty"`
	ReasoningContent *string                  `json:"reasoning_content,omitempty"`
	ThinkingContent  *string                  `json:"thinking_content,omitempty"`
	Name             string                   `json:"name,omitempty"`
	ToolCalls        []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID       string                   `json:"tool_call_id,omitempty"`
	CacheControl     map[string]interface{}   `json:"cache_control,omitempty"`
}

type openAIChatResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Model   string                 `json:"model"`
	Created int64                  `json:"created"`
	Choices []openAIChatChoice     `json:"choices"`
	Usage   map[string]interface{} `json:"usage,omitempty"`
}

type openAIChatChoice struct {
	Index        int                `json:"index"`
	FinishReason string             `json:"finish_reason"`
	Message      *openAIChatMessage `json:"message"`
}

type openAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Model   string               `json:"model"`
	Created int64                `json:"created"`
	Choices []openAIStreamChoice `json:"choices"`
}

type openAIStreamChoice struct {
	Index        int              `json:"index"`
	FinishReason string           `json:"finish_reason"`
	Delta        *openAIChatDelta `json:"delta"`
}

type openAIChatDelta struct {
	Role             string                `json:"role"`
	Content          interface{}           `json:"content"`
	Reasoning        string                `json:"reasoning,omitempty"`
	Thinking         string                `json:"thinking,omitempty"`
	ReasoningContent string                `json:"reasoning_content,omitempty"`
	ThinkingContent  string                `json:"thinking_content,omitempty"`
	ToolCalls        []openAIToolCallDelta `json:"tool_calls,omitempty"`
}

type openAIToolCallDelta struct {
	Index    int                     `json:"index"`
	ID       string                  `json:"id,omitempty"`
	Function openAIFunctionCallDelta `json:"function"`
}

type openAIFunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
