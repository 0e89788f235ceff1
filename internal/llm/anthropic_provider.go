package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// AnthropicProvider implements LlmProvider for Anthropic's Claude family.
type AnthropicProvider struct {
	apiKey        string
	client        *http.Client
	cacheSettings AnthropicCacheSettings
}

// NewAnthropicProvider creates a new Anthropic provider. cacheSettings is
// handed unchanged to every client it constructs (C4).
func NewAnthropicProvider(apiKey string, cacheSettings AnthropicCacheSettings) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:        apiKey,
		client:        &http.Client{},
		cacheSettings: cacheSettings,
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) SupportsStreaming() bool { return true }

func (p *AnthropicProvider) SupportsReasoning(model string) bool {
	family := DetectModelFamily(model)
	switch family {
	case FamilyClaude45, FamilyClaude4, FamilyClaude35:
		return true
	default:
		return false
	}
}

func (p *AnthropicProvider) SupportsReasoningEffort(model string) bool {
	return p.SupportsReasoning(model)
}

func (p *AnthropicProvider) SupportsTools(model string) bool {
	return SupportsToolCalling(model, DetectModelFamily(model))
}

func (p *AnthropicProvider) SupportsStructuredOutput(model string) bool {
	switch DetectModelFamily(model) {
	case FamilyClaude45, FamilyClaude4:
		return true
	default:
		return false
	}
}

func (p *AnthropicProvider) SupportedModels() []string {
	models := p.getFallbackModels()
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}

func (p *AnthropicProvider) ValidateRequest(req *LlmRequest) error {
	if req == nil {
		return NewInvalidRequest("Anthropic", "request cannot be nil")
	}
	if len(req.OutputFormat) > 0 && !p.SupportsStructuredOutput(req.Model) {
		return NewInvalidRequest("Anthropic", "model does not support structured output")
	}
	return nil
}

func (p *AnthropicProvider) CreateClient(modelID string) (LlmClient, error) {
	return NewAnthropicClient(p.apiKey, modelID, p.cacheSettings)
}

// Anthropic API response structures
type anthropicModelsResponse struct {
	Data    []anthropicModelData `json:"data"`
	HasMore bool                 `json:"has_more"`
	FirstID *string              `json:"first_id"`
	LastID  *string              `json:"last_id"`
}

type anthropicModelData struct {
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	CreatedAt    string   `json:"created_at"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.anthropic.com/v1/models", nil)
	if err != nil {
		return nil, NewInvalidRequest("Anthropic", err.Error())
	}

	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewNetworkError("Anthropic", "failed to list models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return p.getFallbackModels(), NewProviderError("Anthropic", "list models API error "+resp.Status+": "+string(body), "")
	}

	var modelsResp anthropicModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, NewProtocolError("Anthropic", "failed to decode models response: "+err.Error())
	}

	models := make([]*ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		if m.Type != "model" {
			continue
		}

		models = append(models, &ModelInfo{
			ID:                  m.ID,
			Name:                getClaudeDisplayName(m.ID, m.DisplayName),
			Provider:            "anthropic",
			Description:         getClaudeDescription(m.ID),
			ContextWindow:       getClaudeContextWindow(m.ID),
			MaxOutputTokens:     getClaudeMaxOutputTokens(m.ID),
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			CreatedAt:           m.CreatedAt,
			Capabilities:        m.Capabilities,
		})
	}

	if len(models) == 0 {
		return p.getFallbackModels(), nil
	}

	return models, nil
}

func (p *AnthropicProvider) getFallbackModels() []*ModelInfo {
	return []*ModelInfo{
		// Claude 4 Series
		{
			ID:                  "claude-4-5-sonnet-20250514",
			Name:                "Claude 4.5 Sonnet",
			Provider:            "anthropic",
			Description:         "Latest Claude model with extended context",
			ContextWindow:       1000000,
			MaxOutputTokens:     16384,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			Capabilities:        []string{"vision", "tool-use", "extended-context"},
		},
		{
			ID:                  "claude-4-5-haiku-20250514",
			Name:                "Claude 4.5 Haiku",
			Provider:            "anthropic",
			Description:         "Fast Claude 4 model",
			ContextWindow:       200000,
			MaxOutputTokens:     8192,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			Capabilities:        []string{"vision", "tool-use"},
		},
		{
			ID:                  "claude-4-1-opus-20250514",
			Name:                "Claude 4.1 Opus",
			Provider:            "anthropic",
			Description:         "Most powerful Claude 4 model",
			ContextWindow:       200000,
			MaxOutputTokens:     8192,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			Capabilities:        []string{"vision", "tool-use"},
		},
		// Claude 3 Series
		{
			ID:                  "claude-3-5-sonnet-20241022",
			Name:                "Claude 3.5 Sonnet (New)",
			Provider:            "anthropic",
			Description:         "Most intelligent Claude model with improved coding and analysis",
			ContextWindow:       200000,
			MaxOutputTokens:     8192,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			Capabilities:        []string{"vision", "tool-use", "extended-thinking"},
		},
		{
			ID:                  "claude-3-opus-20240229",
			Name:                "Claude 3 Opus",
			Provider:            "anthropic",
			Description:         "Most powerful model for highly complex tasks",
			ContextWindow:       200000,
			MaxOutputTokens:     4096,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			Capabilities:        []string{"vision", "tool-use"},
		},
		{
			ID:                  "claude-3-haiku-20240307",
			Name:                "Claude 3 Haiku",
			Provider:            "anthropic",
			Description:         "Fastest model for quick and accurate responses",
			ContextWindow:       200000,
			MaxOutputTokens:     4096,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
			OwnedBy:             "anthropic",
			Capabilities:        []string{"vision", "tool-use"},
		},
	}
}

// Helper functions for Claude model metadata

func getClaudeDisplayName(id, displayName string) string {
	if displayName != "" {
		return displayName
	}
	if strings.Contains(id, "claude-4-5-sonnet") {
		return "Claude 4.5 Sonnet"
	}
	if strings.Contains(id, "claude-4-5-haiku") {
		return "Claude 4.5 Haiku"
	}
	if strings.Contains(id, "claude-4-1-opus") {
		return "Claude 4.1 Opus"
	}
	if strings.Contains(id, "claude-3-5-sonnet-20241022") {
		return "Claude 3.5 Sonnet (New)"
	}
	if strings.Contains(id, "claude-3-5-sonnet") {
		return "Claude 3.5 Sonnet"
	}
	if strings.Contains(id, "claude-3-opus") {
		return "Claude 3 Opus"
	}
	if strings.Contains(id, "claude-3-sonnet") {
		return "Claude 3 Sonnet"
	}
	if strings.Contains(id, "claude-3-haiku") {
		return "Claude 3 Haiku"
	}
	return id
}

func getClaudeDescription(id string) string {
	if strings.Contains(id, "claude-4-5-sonnet") {
		return "Latest Claude model with extended context"
	}
	if strings.Contains(id, "claude-4-5-haiku") {
		return "Fast Claude 4 model"
	}
	if strings.Contains(id, "claude-4-1-opus") {
		return "Most powerful Claude 4 model"
	}
	if strings.Contains(id, "claude-3-5-sonnet") {
		return "Intelligent model for complex tasks"
	}
	if strings.Contains(id, "claude-3-opus") {
		return "Most powerful model for highly complex tasks"
	}
	if strings.Contains(id, "claude-3-sonnet") {
		return "Balanced model for scaled deployments"
	}
	if strings.Contains(id, "claude-3-haiku") {
		return "Fastest model for quick and accurate responses"
	}
	return "Claude language model"
}

func getClaudeContextWindow(id string) int {
	if strings.Contains(id, "claude-4-5-sonnet") {
		return 1000000
	}
	if strings.Contains(id, "claude-4") {
		return 200000
	}
	if strings.Contains(id, "claude-3") {
		return 200000
	}
	if strings.Contains(id, "claude-2") {
		return 200000
	}
	return 200000
}

func getClaudeMaxOutputTokens(id string) int {
	if strings.Contains(id, "claude-4-5-sonnet") {
		return 16384
	}
	if strings.Contains(id, "claude-4-5-haiku") || strings.Contains(id, "claude-4-1-opus") {
		return 8192
	}
	if strings.Contains(id, "claude-3-5-sonnet") || strings.Contains(id, "claude-3.5-sonnet") {
		return 8192
	}
	if strings.Contains(id, "claude-3") {
		return 4096
	}
	if strings.Contains(id, "claude-2") {
		return 4096
	}
	return 4096
}

func (p *AnthropicProvider) ValidateAPIKey(ctx context.Context) error {
	client, err := p.CreateClient("claude-3-haiku-20240307")
	if err != nil {
		return err
	}

	_, err = client.Generate(ctx, &LlmRequest{
		Messages:  []CanonicalMessage{{Role: RoleUser, Content: "Hi"}},
		MaxTokens: 8,
	})
	if err != nil {
		var llmErr *Error
		if asError(err, &llmErr) && llmErr.Kind == KindAuthentication {
			return err
		}
		return NewAuthenticationError("Anthropic", err.Error())
	}

	return nil
}
