package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider implements LlmProvider for OpenAI's native API.
type OpenAIProvider struct {
	apiKey        string
	client        *http.Client
	cacheSettings OpenAICacheSettings
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey string, cacheSettings OpenAICacheSettings) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:        apiKey,
		client:        &http.Client{},
		cacheSettings: cacheSettings,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) SupportsStreaming() bool { return true }

func (p *OpenAIProvider) SupportsReasoning(model string) bool {
	return supportsOpenAIReasoningEffort(model)
}

// supportsOpenAIReasoningEffort reports whether model accepts a
// reasoning.effort parameter on the Responses/Chat Completions APIs.
func supportsOpenAIReasoningEffort(model string) bool {
	lowered := strings.ToLower(model)
	return strings.HasPrefix(lowered, "o1") || strings.HasPrefix(lowered, "o3") ||
		strings.HasPrefix(lowered, "o4") || strings.HasPrefix(lowered, "gpt-5")
}

func (p *OpenAIProvider) SupportsReasoningEffort(model string) bool {
	return p.SupportsReasoning(model)
}

func (p *OpenAIProvider) SupportsTools(model string) bool {
	family := DetectModelFamily(model)
	return SupportsToolCalling(model, family)
}

func (p *OpenAIProvider) SupportsStructuredOutput(model string) bool { return true }

func (p *OpenAIProvider) SupportedModels() []string {
	return []string{
		"gpt-5.1-codex",
		"gpt-5.1",
		"gpt-5",
		"gpt-4.1",
		"gpt-4o",
		"o3",
		"o4-mini",
	}
}

func (p *OpenAIProvider) ValidateRequest(req *LlmRequest) error {
	if req == nil {
		return NewInvalidRequest("OpenAI", "request cannot be nil")
	}
	return nil
}

// OpenAI API response structures
type openAIModelsList struct {
	Data []openAIModelData `json:"data"`
}

type openAIModelData struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.openai.com/v1/models", nil)
	if err != nil {
		return nil, NewInvalidRequest("OpenAI", "failed to create request: "+err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewNetworkError("OpenAI", "failed to list models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, chatHTTPError(resp.StatusCode, body)
	}

	var modelsList openAIModelsList
	if err := json.NewDecoder(resp.Body).Decode(&modelsList); err != nil {
		return nil, NewProtocolError("OpenAI", "failed to decode response: "+err.Error())
	}

	models := make([]*ModelInfo, 0)
	for _, m := range modelsList.Data {
		if !strings.HasPrefix(m.ID, "gpt-") && !strings.HasPrefix(m.ID, "o1") &&
			!strings.HasPrefix(m.ID, "o3") && !strings.HasPrefix(m.ID, "o4") {
			continue
		}

		if strings.Contains(m.ID, ":") {
			continue
		}

		if strings.Contains(m.ID, "embedding") ||
			strings.Contains(m.ID, "tts") ||
			strings.Contains(m.ID, "whisper") ||
			strings.Contains(m.ID, "dall-e") {
			continue
		}

		family := DetectModelFamily(m.ID)
		contextWindow := DetectContextWindow(m.ID, family)

		info := &ModelInfo{
			ID:                  m.ID,
			Name:                FormatModelDisplayName(m.ID, family),
			Provider:            "openai",
			Description:         GetModelDescription(m.ID, family),
			ContextWindow:       contextWindow,
			MaxOutputTokens:     DetectMaxOutputTokens(m.ID, family, contextWindow),
			SupportsToolCalling: SupportsToolCalling(m.ID, family),
			SupportsStreaming:   true,
			OwnedBy:             m.OwnedBy,
		}

		models = append(models, info)
	}

	return models, nil
}

func (p *OpenAIProvider) CreateClient(modelID string) (LlmClient, error) {
	return NewOpenAIClient(p.apiKey, modelID, p.cacheSettings)
}

func (p *OpenAIProvider) ValidateAPIKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.openai.com/v1/models", nil)
	if err != nil {
		return NewInvalidRequest("OpenAI", "failed to create request: "+err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return NewNetworkError("OpenAI", "connection failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return NewAuthenticationError("OpenAI", "OPENAI_API_KEY")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return chatHTTPError(resp.StatusCode, body)
	}

	return nil
}
