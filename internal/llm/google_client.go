package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	genai "google.golang.org/genai"

	"github.com/codefionn/llmbridge/internal/consts"
)

// GoogleGenAIClient implements LlmClient using the official Google GenAI SDK.
type GoogleGenAIClient struct {
	modelName     string
	client        *genai.Client
	cacheSettings GeminiCacheSettings
}

// NewGoogleAIClient creates a Google GenAI client for the provided model.
func NewGoogleAIClient(apiKey, modelName string, cacheSettings GeminiCacheSettings) (LlmClient, error) {
	normalizedModel := normalizeGoogleModelName(modelName)

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewNetworkError("Gemini", "failed to create client", err)
	}

	return &GoogleGenAIClient{
		modelName:     normalizedModel,
		client:        client,
		cacheSettings: cacheSettings,
	}, nil
}

func (c *GoogleGenAIClient) GenerateModelName() string {
	return c.modelName
}

func (c *GoogleGenAIClient) Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error) {
	contents, err := convertMessagesToGenAI(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return &LlmResponse{}, nil
	}

	cfg := buildGenAIGenerationConfig(c.modelName, req, c.cacheSettings)

	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return nil, NewNetworkError("Gemini", "completion failed", err)
	}

	return buildGeminiResponse(resp), nil
}

func (c *GoogleGenAIClient) Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error {
	contents, err := convertMessagesToGenAI(req.Messages)
	if err != nil {
		return err
	}
	if len(contents) == 0 {
		return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: &LlmResponse{}})
	}

	cfg := buildGenAIGenerationConfig(c.modelName, req, c.cacheSettings)

	var last *genai.GenerateContentResponse
	stream := c.client.Models.GenerateContentStream(ctx, c.modelName, contents, cfg)
	for result, err := range stream {
		if err != nil {
			return NewNetworkError("Gemini", "stream failed", err)
		}
		last = result
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			continue
		}
		chunk := collectTextFromContent(result.Candidates[0].Content)
		if strings.TrimSpace(chunk) != "" {
			if err := onEvent(LlmStreamEvent{Kind: StreamToken, Delta: chunk}); err != nil {
				return err
			}
		}
	}

	return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: buildGeminiResponse(last)})
}

func buildGeminiResponse(resp *genai.GenerateContentResponse) *LlmResponse {
	if resp == nil || len(resp.Candidates) == 0 {
		reason := FinishStop
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = FinishContentFilter
		}
		return &LlmResponse{FinishReason: reason}
	}

	candidate := resp.Candidates[0]
	content := ""
	if candidate.Content != nil {
		content = collectTextFromContent(candidate.Content)
	}

	toolCalls := convertToolCallsFromContent(candidate.Content)

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &LlmResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		Usage:        usage,
		FinishReason: mapGeminiFinishReason(string(candidate.FinishReason), len(toolCalls) > 0),
	}
}

func mapGeminiFinishReason(reason string, hasToolCalls bool) FinishReason {
	if hasToolCalls {
		return FinishToolCalls
	}
	switch reason {
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return FinishContentFilter
	case "STOP", "":
		return FinishStop
	default:
		return FinishStop
	}
}

func collectTextFromContent(content *genai.Content) string {
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func convertToolCallsFromContent(content *genai.Content) []ToolCall {
	if content == nil {
		return nil
	}

	var toolCalls []ToolCall
	for _, part := range content.Parts {
		if part == nil || part.FunctionCall == nil {
			continue
		}

		argsJSON, err := json.Marshal(part.FunctionCall.Args)
		if err != nil || part.FunctionCall.Args == nil {
			argsJSON = []byte("{}")
		}

		id := part.FunctionCall.ID
		if id == "" {
			id = part.FunctionCall.Name
		}

		sig := ""
		if len(part.ThoughtSignature) > 0 {
			sig = base64.StdEncoding.EncodeToString(part.ThoughtSignature)
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:               id,
			FunctionName:     part.FunctionCall.Name,
			Arguments:        string(argsJSON),
			ThoughtSignature: sig,
		})
	}

	return toolCalls
}

func convertMessagesToGenAI(messages []CanonicalMessage) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			content, err := convertAssistantMessage(msg)
			if err != nil {
				return nil, err
			}
			contents = append(contents, content)
		case RoleTool:
			contents = append(contents, convertToolResponseMessage(msg))
		default:
			if msg.Content == "" {
				continue
			}
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, nil
}

func convertAssistantMessage(msg CanonicalMessage) (*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)

	if msg.Content != "" {
		parts = append(parts, genai.NewPartFromText(msg.Content))
	}

	for _, tc := range msg.ToolCalls {
		if tc.FunctionName == "" {
			continue
		}

		argsMap := make(map[string]any)
		if strings.TrimSpace(tc.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &argsMap); err != nil {
				return nil, NewInvalidRequest("Gemini", "invalid function call arguments: "+err.Error())
			}
		}

		part := genai.NewPartFromFunctionCall(tc.FunctionName, argsMap)
		if tc.ID != "" {
			part.FunctionCall.ID = tc.ID
		}
		if tc.ThoughtSignature != "" {
			if sig, err := base64.StdEncoding.DecodeString(tc.ThoughtSignature); err == nil {
				part.ThoughtSignature = sig
			}
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(""))
	}

	return genai.NewContentFromParts(parts, genai.RoleModel), nil
}

func convertToolResponseMessage(msg CanonicalMessage) *genai.Content {
	responsePayload := make(map[string]any)
	if strings.TrimSpace(msg.Content) != "" {
		if err := json.Unmarshal([]byte(msg.Content), &responsePayload); err != nil {
			responsePayload["output"] = msg.Content
		}
	}

	part := genai.NewPartFromFunctionResponse(msg.ToolCallID, responsePayload)
	return genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser)
}

func buildGenAIGenerationConfig(modelName string, req *LlmRequest, cacheSettings GeminiCacheSettings) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}

	maxTokens := req.MaxTokens
	if maxTokens > 0 {
		maxTokens = clampGeminiMaxTokens(modelName, maxTokens)
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	if len(req.Tools) > 0 {
		cfg.Tools = convertToolsToGenAI(req.Tools)
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: geminiFunctionCallingMode(req.ToolChoice)},
		}
	}

	if tier := geminiThinkingTier(modelName, req.ReasoningEffort); tier != geminiTierOff {
		budget := geminiThinkingBudget(tier, maxTokens)
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget:  genai.Ptr(budget),
			IncludeThoughts: true,
		}
	}

	// GeminiCacheExplicit (explicit context caching) requires a separately
	// created CachedContent handle; this adapter only drives implicit
	// caching (Gemini's default, on automatically for eligible prefixes).

	return cfg
}

// geminiReasoningTier is the normalized thinking tier a request maps onto,
// independent of the provider-specific token budget used to express it.
type geminiReasoningTier int

const (
	geminiTierOff geminiReasoningTier = iota
	geminiTierMinimal
	geminiTierLow
	geminiTierMedium
	geminiTierHigh
)

// geminiIsFlash3 reports whether model belongs to the Gemini 3 Flash family,
// which gets its own effort mapping distinct from Gemini 3 Pro / 2.5.
func geminiIsFlash3(model string) bool {
	lowered := strings.ToLower(model)
	return strings.Contains(lowered, "gemini-3") && strings.Contains(lowered, "flash")
}

// geminiSupportsThinking reports whether model exposes a thinking/reasoning
// budget at all. Only Gemini 3 and 2.5 families do.
func geminiSupportsThinking(model string) bool {
	lowered := strings.ToLower(model)
	return strings.Contains(lowered, "gemini-3") || strings.Contains(lowered, "gemini-2.5") || strings.Contains(lowered, "gemini-2-5")
}

// geminiThinkingTier maps a canonical reasoning effort onto the documented
// per-family tier table. Gemini 3 Flash supports a distinct "minimal" and
// "medium" tier; Gemini 3 Pro and 2.5 collapse medium into high.
func geminiThinkingTier(model string, effort ReasoningEffort) geminiReasoningTier {
	if !geminiSupportsThinking(model) {
		return geminiTierOff
	}

	if geminiIsFlash3(model) {
		switch effort {
		case ReasoningNone:
			return geminiTierLow
		case ReasoningMinimal:
			return geminiTierMinimal
		case ReasoningLow:
			return geminiTierLow
		case ReasoningMedium:
			return geminiTierMedium
		case ReasoningHigh, ReasoningXHigh:
			return geminiTierHigh
		default:
			return geminiTierLow
		}
	}

	switch effort {
	case ReasoningNone:
		return geminiTierLow
	case ReasoningMinimal, ReasoningLow:
		return geminiTierLow
	case ReasoningMedium, ReasoningHigh, ReasoningXHigh:
		return geminiTierHigh
	default:
		return geminiTierLow
	}
}

// geminiThinkingBudget converts a tier into a token budget proportional to
// the response's max tokens, mirroring the Anthropic adapter's approach
// since the GenAI SDK exposes thinking depth as a token budget, not a tier.
func geminiThinkingBudget(tier geminiReasoningTier, maxTokens int) int32 {
	if maxTokens <= 0 {
		maxTokens = consts.DefaultMaxTokens
	}

	var fraction float64
	switch tier {
	case geminiTierMinimal:
		fraction = 0.1
	case geminiTierLow:
		fraction = 0.25
	case geminiTierMedium:
		fraction = 0.5
	case geminiTierHigh:
		fraction = 0.8
	default:
		return 0
	}

	budget := int32(float64(maxTokens) * fraction)
	if budget < 512 {
		budget = 512
	}
	return budget
}

// clampGeminiMaxTokens enforces the documented per-family output ceilings.
func clampGeminiMaxTokens(model string, maxTokens int) int {
	lowered := strings.ToLower(model)
	limit := 8192
	if strings.Contains(lowered, "gemini-2.5") || strings.Contains(lowered, "gemini-2-5") || strings.Contains(lowered, "gemini-3") {
		limit = 65536
	}
	if maxTokens > limit {
		return limit
	}
	return maxTokens
}

func geminiFunctionCallingMode(choice ToolChoice) genai.FunctionCallingConfigMode {
	switch choice.Mode {
	case ToolChoiceNone:
		return genai.FunctionCallingConfigModeNone
	case ToolChoiceAny, ToolChoiceSpecific:
		return genai.FunctionCallingConfigModeAny
	default:
		return genai.FunctionCallingConfigModeAuto
	}
}

func convertToolsToGenAI(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]*genai.Tool, 0, len(tools))
	for _, def := range tools {
		if def.Name == "" {
			continue
		}

		decl := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}

		if def.Parameters != nil {
			if sanitized, ok := sanitizeFunctionParameters(def.Parameters).(map[string]interface{}); ok {
				decl.ParametersJsonSchema = sanitized
			}
		}

		result = append(result, &genai.Tool{FunctionDeclarations: []*genai.FunctionDeclaration{decl}})
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// geminiUnsupportedSchemaKeys are JSON-Schema keywords Gemini's
// function-calling schema rejects.
var geminiUnsupportedSchemaKeys = map[string]struct{}{
	"additionalProperties": {}, "oneOf": {}, "anyOf": {}, "allOf": {},
	"exclusiveMaximum": {}, "exclusiveMinimum": {}, "minimum": {}, "maximum": {},
	"$schema": {}, "$id": {}, "$ref": {}, "definitions": {}, "patternProperties": {},
	"dependencies": {}, "const": {}, "if": {}, "then": {}, "else": {}, "not": {},
	"contentMediaType": {}, "contentEncoding": {},
}

// sanitizeFunctionParameters strips unsupported JSON-Schema keywords at
// every depth before a tool definition is sent to Gemini. The result
// contains no forbidden keys, so re-running it is a no-op.
func sanitizeFunctionParameters(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			if _, skip := geminiUnsupportedSchemaKeys[key]; skip {
				continue
			}
			result[key] = sanitizeFunctionParameters(val)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = sanitizeFunctionParameters(item)
		}
		return result
	default:
		return v
	}
}

func normalizeGoogleModelName(modelName string) string {
	trimmed := strings.TrimSpace(modelName)
	if trimmed == "" {
		return "models/gemini-2.0-flash"
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "models/") || strings.HasPrefix(lowered, "publishers/") {
		return trimmed
	}

	return "models/" + trimmed
}
