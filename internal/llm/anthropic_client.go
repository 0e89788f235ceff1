package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/codefionn/llmbridge/internal/consts"
)

const (
	defaultAnthropicModel = "claude-haiku-4-5"

	// structuredOutputToolName is the synthetic tool Anthropic requests are
	// forced onto when LlmRequest.OutputFormat is set (C5). Anthropic has no
	// native structured-output mode, so the schema is smuggled through as a
	// tool_choice-forced tool call and the resulting arguments are promoted
	// back into LlmResponse.Content.
	structuredOutputToolName = "structured_output"
)

var defaultAnthropicMaxTokens = consts.DefaultMaxTokens

// AnthropicClient implements LlmClient using the official Anthropic SDK.
type AnthropicClient struct {
	client        anthropic.Client
	model         string
	cacheSettings AnthropicCacheSettings
}

// NewAnthropicClient creates an Anthropic client backed by the official SDK.
// Prompt-cache behavior is fixed at construction time per C4: the adapter,
// not the caller, decides where cache breakpoints land.
func NewAnthropicClient(apiKey, modelName string, cacheSettings AnthropicCacheSettings) (LlmClient, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, NewAuthenticationError("Anthropic", "missing API key")
	}

	model := strings.TrimSpace(modelName)
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client:        anthropic.NewClient(option.WithAPIKey(key)),
		model:         model,
		cacheSettings: cacheSettings,
	}, nil
}

func (c *AnthropicClient) GenerateModelName() string {
	return c.model
}

func (c *AnthropicClient) Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	var resp *LlmResponse
	err := c.run(ctx, req, nil, func(r *LlmResponse) {
		resp = r
	})
	return resp, err
}

func (c *AnthropicClient) Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	return c.run(ctx, req, onEvent, nil)
}

// run drives a single Anthropic streaming call. Exactly one of onEvent or
// onComplete is used: streaming callers get incremental events plus a final
// StreamCompleted event, single-shot callers get onComplete invoked once.
func (c *AnthropicClient) run(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error, onComplete func(*LlmResponse)) error {
	if req == nil {
		return NewInvalidRequest("Anthropic", "request cannot be nil")
	}

	structured := len(req.OutputFormat) > 0
	if structured {
		if err := ValidateStructuredOutputSchema(req.OutputFormat); err != nil {
			return err
		}
	}

	params, err := c.buildMessageParams(req, structured)
	if err != nil {
		return err
	}

	return c.executeWithRetry(ctx, func() error {
		stream := c.client.Beta.Messages.NewStreaming(ctx, params)
		if stream == nil {
			return NewProviderError("Anthropic", "no stream returned", "")
		}
		defer stream.Close()

		var (
			contentBuilder strings.Builder
			builder        = NewToolCallBuilder()
			reasoning      = &ReasoningBuffer{}
			stopReason     string
			usage          Usage
		)

		for stream.Next() {
			event := stream.Current()

			switch e := event.AsAny().(type) {
			case anthropic.BetaRawMessageStartEvent:
				usage.PromptTokens = int(e.Message.Usage.InputTokens)
				usage.CacheCreationTokens = int(e.Message.Usage.CacheCreationInputTokens)
				usage.CacheReadTokens = int(e.Message.Usage.CacheReadInputTokens)
			case anthropic.BetaRawContentBlockStartEvent:
				if e.ContentBlock.Type == "tool_use" {
					builder.AddDelta(int(e.Index), e.ContentBlock.ID, e.ContentBlock.Name, "")
				}
			case anthropic.BetaRawContentBlockDeltaEvent:
				switch e.Delta.Type {
				case "text_delta":
					contentBuilder.WriteString(e.Delta.Text)
					if onEvent != nil {
						if err := onEvent(LlmStreamEvent{Kind: StreamToken, Delta: e.Delta.Text}); err != nil {
							return err
						}
					}
				case "input_json_delta":
					builder.AddDelta(int(e.Index), "", "", e.Delta.PartialJSON)
				case "thinking_delta", "reasoning_delta":
					if delta, ok := reasoning.Push(e.Delta.Text); ok && onEvent != nil {
						if err := onEvent(LlmStreamEvent{Kind: StreamReasoning, Delta: delta}); err != nil {
							return err
						}
					}
				}
			case anthropic.BetaRawMessageDeltaEvent:
				if e.Delta.StopReason != "" {
					stopReason = string(e.Delta.StopReason)
				}
				if e.Usage.OutputTokens > 0 {
					usage.CompletionTokens = int(e.Usage.OutputTokens)
				}
			}
		}

		if err := stream.Err(); err != nil {
			return NewNetworkError("Anthropic", "stream failed", err)
		}

		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		reasoningText, _ := reasoning.Finalize()
		toolCalls := builder.Finalize()

		content := contentBuilder.String()
		if structured {
			if promoted, ok := promoteStructuredOutput(toolCalls, structuredOutputToolName); ok {
				content = promoted
				toolCalls = nil
			}
		}

		resp := &LlmResponse{
			Content:      content,
			ToolCalls:    toolCalls,
			Usage:        usage,
			Reasoning:    reasoningText,
			FinishReason: mapAnthropicStopReason(stopReason),
		}

		if onEvent != nil {
			return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: resp})
		}
		if onComplete != nil {
			onComplete(resp)
		}
		return nil
	})
}

// promoteStructuredOutput looks for the synthetic structured_output tool
// call and, if present, returns its raw JSON arguments as response content.
func promoteStructuredOutput(calls []ToolCall, name string) (string, bool) {
	for _, tc := range calls {
		if tc.FunctionName == name {
			return tc.Arguments, true
		}
	}
	return "", false
}

func mapAnthropicStopReason(stopReason string) FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return FinishStop
	case "max_tokens":
		return FinishLength
	case "tool_use":
		return FinishToolCalls
	default:
		return FinishStop
	}
}

func (c *AnthropicClient) executeWithRetry(ctx context.Context, operation func() error) error {
	maxRetries := consts.DefaultMaxRetries
	baseDelay := 1 * time.Second

	var err error
	for i := 0; i <= maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRateLimitError(err) {
			return err
		}

		if i == maxRetries {
			break
		}

		delay := baseDelay * time.Duration(1<<i)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			continue
		}
	}
	return err
}

func isRateLimitError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	var llmErr *Error
	if asError(err, &llmErr) {
		return llmErr.Kind == KindRateLimit
	}
	return strings.Contains(err.Error(), "429")
}

func (c *AnthropicClient) buildMessageParams(req *LlmRequest, structured bool) (anthropic.BetaMessageNewParams, error) {
	// Cache breakpoints are allocated tool -> system -> user, in that
	// document order, against a single shared budget (C4).
	budget := newBreakpointBudget(c.cacheSettings)

	tools := req.Tools
	if structured {
		tools = append(append([]ToolDefinition(nil), tools...), ToolDefinition{
			Name:        structuredOutputToolName,
			Description: "Return the final answer in the required structured format.",
			Parameters:  req.OutputFormat,
		})
	}
	var toolParams []anthropic.BetaToolUnionParam
	if len(tools) > 0 {
		toolParams = convertAnthropicTools(tools, c.cacheSettings, budget)
	}

	systemBlocks, chatMessages, err := convertMessagesToAnthropic(req.SystemPrompt, req.Messages, c.cacheSettings, budget)
	if err != nil {
		return anthropic.BetaMessageNewParams{}, err
	}

	if len(chatMessages) == 0 {
		chatMessages = append(chatMessages, buildFallbackAnthropicUserMessage(req.SystemPrompt))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.BetaMessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  chatMessages,
	}

	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(toolParams) > 0 {
		params.Tools = toolParams
	}

	switch {
	case structured:
		params.ToolChoice = anthropic.BetaToolChoiceUnionParam{
			OfTool: &anthropic.BetaToolChoiceToolParam{Name: structuredOutputToolName},
		}
	case req.ToolChoice.Mode == ToolChoiceNone:
		// Anthropic has no explicit "none"; omit tools entirely to achieve it.
		params.Tools = nil
	case req.ToolChoice.Mode == ToolChoiceAny:
		params.ToolChoice = anthropic.BetaToolChoiceUnionParam{OfAny: &anthropic.BetaToolChoiceAnyParam{}}
	case req.ToolChoice.Mode == ToolChoiceSpecific && req.ToolChoice.Name != "":
		params.ToolChoice = anthropic.BetaToolChoiceUnionParam{
			OfTool: &anthropic.BetaToolChoiceToolParam{Name: req.ToolChoice.Name},
		}
	}

	if req.ReasoningEffort != ReasoningNone {
		if thinkingBudget := anthropicThinkingBudget(req.ReasoningEffort, maxTokens); thinkingBudget > 0 {
			params.Thinking = anthropic.BetaThinkingConfigParamOfEnabled(int64(thinkingBudget))
		}
	}

	if c.cacheSettings.Enabled {
		params.Betas = append(params.Betas, anthropic.AnthropicBetaPromptCaching2024_07_31)
		if c.cacheSettings.TTL() == "1h" {
			params.Betas = append(params.Betas, anthropic.AnthropicBetaExtendedCacheTTL2025_04_11)
		}
	}
	if structured {
		params.Betas = append(params.Betas, anthropic.AnthropicBetaStructuredOutputs2025_11_13)
	}

	return params, nil
}

// anthropicThinkingBudget maps the canonical effort level onto a token
// budget for extended thinking. Anthropic has no named effort tiers, only a
// raw budget, so the mapping is a fraction of the response's max tokens.
func anthropicThinkingBudget(effort ReasoningEffort, maxTokens int) int {
	var fraction float64
	switch effort {
	case ReasoningMinimal:
		fraction = 0.1
	case ReasoningLow:
		fraction = 0.25
	case ReasoningMedium:
		fraction = 0.5
	case ReasoningHigh:
		fraction = 0.75
	case ReasoningXHigh:
		fraction = 0.9
	default:
		return 0
	}
	budget := int(float64(maxTokens) * fraction)
	if budget < 1024 {
		budget = 1024
	}
	return budget
}

// breakpointBudget tracks how many Anthropic prompt-cache breakpoints remain
// available for a single request. Breakpoints are allocated tool -> system ->
// user in document order; once exhausted, later placements go uncached.
type breakpointBudget struct {
	remaining int
}

func newBreakpointBudget(cacheSettings AnthropicCacheSettings) *breakpointBudget {
	if !cacheSettings.Enabled {
		return &breakpointBudget{}
	}
	return &breakpointBudget{remaining: cacheSettings.MaxBreakpoints}
}

func (b *breakpointBudget) consume() bool {
	if b == nil || b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

func convertMessagesToAnthropic(systemPrompt string, messages []CanonicalMessage, cacheSettings AnthropicCacheSettings, budget *breakpointBudget) ([]anthropic.BetaTextBlockParam, []anthropic.BetaMessageParam, error) {
	systemBlocks := make([]anthropic.BetaTextBlockParam, 0, 1)
	if sys := strings.TrimSpace(systemPrompt); sys != "" {
		block := anthropic.BetaTextBlockParam{Text: sys}
		if cacheSettings.Enabled && cacheSettings.CacheSystemMessages && budget.consume() {
			block.CacheControl = makeCacheControl(cacheSettings.TTL())
		}
		systemBlocks = append(systemBlocks, block)
	}

	chatMessages := make([]anthropic.BetaMessageParam, 0, len(messages))

	for idx, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if text := strings.TrimSpace(msg.Content); text != "" {
				systemBlocks = append(systemBlocks, anthropic.BetaTextBlockParam{Text: text})
			}
			continue
		case RoleAssistant:
			blocks, err := buildAnthropicAssistantBlocks(msg)
			if err != nil {
				return nil, nil, NewInvalidRequest("Anthropic", fmt.Sprintf("assistant message at index %d: %v", idx, err))
			}
			if len(blocks) == 0 {
				continue
			}
			chatMessages = append(chatMessages, anthropic.BetaMessageParam{
				Role:    anthropic.BetaMessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleTool:
			toolMsg := buildAnthropicToolMessage(msg)
			if toolMsg.Role != "" {
				chatMessages = append(chatMessages, toolMsg)
			}
		default:
			blocks := buildAnthropicTextBlocks(msg.Content)
			if len(blocks) == 0 {
				continue
			}
			if msg.Role == RoleUser && cacheSettings.Enabled && cacheSettings.CacheUserMessages && budget.consume() {
				applyCacheControlToBlocks(blocks, cacheSettings.TTL())
			}
			chatMessages = append(chatMessages, anthropic.BetaMessageParam{
				Role:    anthropic.BetaMessageParamRoleUser,
				Content: blocks,
			})
		}
	}

	return systemBlocks, chatMessages, nil
}

func buildAnthropicAssistantBlocks(msg CanonicalMessage) ([]anthropic.BetaContentBlockParamUnion, error) {
	blocks := make([]anthropic.BetaContentBlockParamUnion, 0, 1+len(msg.ToolCalls))

	if msg.Content != "" {
		blocks = append(blocks, anthropic.NewBetaTextBlock(msg.Content))
	}

	blocks = append(blocks, convertAnthropicToolUses(msg.ToolCalls)...)

	return blocks, nil
}

func convertAnthropicToolUses(toolCalls []ToolCall) []anthropic.BetaContentBlockParamUnion {
	if len(toolCalls) == 0 {
		return nil
	}

	result := make([]anthropic.BetaContentBlockParamUnion, 0, len(toolCalls))
	for idx, tc := range toolCalls {
		name := strings.TrimSpace(tc.FunctionName)
		if name == "" {
			continue
		}

		callID := strings.TrimSpace(tc.ID)
		if callID == "" {
			callID = fmt.Sprintf("tool_call_%d", idx)
		}

		input := parseToolArguments(tc.Arguments)
		result = append(result, anthropic.NewBetaToolUseBlock(callID, input, name))
	}

	return result
}

func buildAnthropicToolMessage(msg CanonicalMessage) anthropic.BetaMessageParam {
	toolID := strings.TrimSpace(msg.ToolCallID)
	if toolID == "" {
		if msg.Content == "" {
			return anthropic.BetaMessageParam{}
		}
		return anthropic.BetaMessageParam{
			Role:    anthropic.BetaMessageParamRoleUser,
			Content: []anthropic.BetaContentBlockParamUnion{anthropic.NewBetaTextBlock(msg.Content)},
		}
	}

	toolResult := anthropic.BetaToolResultBlockParam{
		ToolUseID: toolID,
	}
	if msg.Content != "" {
		textBlock := anthropic.BetaTextBlockParam{Text: msg.Content}
		toolResult.Content = []anthropic.BetaToolResultBlockParamContentUnion{
			{OfText: &textBlock},
		}
	}

	return anthropic.BetaMessageParam{
		Role: anthropic.BetaMessageParamRoleUser,
		Content: []anthropic.BetaContentBlockParamUnion{
			{OfToolResult: &toolResult},
		},
	}
}

func buildAnthropicTextBlocks(content string) []anthropic.BetaContentBlockParamUnion {
	if content == "" {
		return nil
	}
	return []anthropic.BetaContentBlockParamUnion{anthropic.NewBetaTextBlock(content)}
}

// buildFallbackAnthropicUserMessage creates a minimal user message when the request otherwise lacks any chat turns.
func buildFallbackAnthropicUserMessage(systemPrompt string) anthropic.BetaMessageParam {
	content := strings.TrimSpace(systemPrompt)
	if content == "" {
		content = "Please describe how I can help."
	}

	return anthropic.BetaMessageParam{
		Role: anthropic.BetaMessageParamRoleUser,
		Content: []anthropic.BetaContentBlockParamUnion{
			anthropic.NewBetaTextBlock(content),
		},
	}
}

func convertAnthropicTools(tools []ToolDefinition, cacheSettings AnthropicCacheSettings, budget *breakpointBudget) []anthropic.BetaToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.BetaToolUnionParam, 0, len(tools))
	for _, def := range tools {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			continue
		}

		schema := anthropic.BetaToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := def.Parameters; params != nil {
			if props, ok := params["properties"]; ok {
				schema.Properties = props
			}
			if req := extractStringSlice(params["required"]); len(req) > 0 {
				schema.Required = req
			}
			if schemaType, ok := params["type"].(string); ok && schemaType != "" {
				schema.Type = constant.Object(schemaType)
			}
			if extras := copyExtraFields(params, "type", "properties", "required"); len(extras) > 0 {
				schema.ExtraFields = extras
			}
		}

		tool := &anthropic.BetaToolParam{
			Name:        name,
			InputSchema: schema,
			Type:        anthropic.BetaToolTypeCustom,
		}

		if desc := strings.TrimSpace(def.Description); desc != "" {
			tool.Description = anthropic.String(desc)
		}

		result = append(result, anthropic.BetaToolUnionParam{OfTool: tool})
	}

	if len(result) == 0 {
		return nil
	}

	// Cache the last tool definition to create a single breakpoint
	// covering every tool in the request, if the budget allows it.
	if cacheSettings.Enabled && budget.consume() {
		if last := result[len(result)-1].OfTool; last != nil {
			last.CacheControl = makeCacheControl(cacheSettings.TTL())
		}
	}

	return result
}

func parseToolArguments(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		return decoded
	}
	return raw
}

func extractStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}

func copyExtraFields(src map[string]interface{}, skip ...string) map[string]any {
	if len(src) == 0 {
		return nil
	}
	skipSet := make(map[string]struct{}, len(skip))
	for _, key := range skip {
		skipSet[key] = struct{}{}
	}

	extras := make(map[string]any)
	for key, val := range src {
		if _, shouldSkip := skipSet[key]; shouldSkip {
			continue
		}
		extras[key] = val
	}

	if len(extras) == 0 {
		return nil
	}
	return extras
}

// makeCacheControl creates a cache control parameter with the specified TTL
func makeCacheControl(ttl string) anthropic.BetaCacheControlEphemeralParam {
	cacheControl := anthropic.NewBetaCacheControlEphemeralParam()

	switch strings.ToLower(strings.TrimSpace(ttl)) {
	case "5m":
		cacheControl.TTL = anthropic.BetaCacheControlEphemeralTTLTTL5m
	default:
		cacheControl.TTL = anthropic.BetaCacheControlEphemeralTTLTTL1h
	}

	return cacheControl
}

// applyCacheControlToBlocks applies cache control metadata to the last text block.
func applyCacheControlToBlocks(blocks []anthropic.BetaContentBlockParamUnion, ttl string) {
	for i := len(blocks) - 1; i >= 0; i-- {
		if text := blocks[i].OfText; text != nil {
			text.CacheControl = makeCacheControl(ttl)
			return
		}
	}
}
