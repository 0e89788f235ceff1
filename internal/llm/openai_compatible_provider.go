package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// OpenAICompatibleProvider implements LlmProvider for generic OpenAI-compatible APIs.
// This includes local LLMs (LM Studio, LocalAI, Ollama with OpenAI compat layer, etc.)
// and custom deployments that follow the OpenAI API specification.
type OpenAICompatibleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAICompatibleProvider creates a new OpenAI-compatible provider.
// baseURL should be the API endpoint (e.g., "http://localhost:1234/v1" for LM Studio).
// If apiKey is empty, requests will be made without authentication.
func NewOpenAICompatibleProvider(apiKey string, baseURL string) *OpenAICompatibleProvider {
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OpenAICompatibleProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (p *OpenAICompatibleProvider) Name() string {
	return "openai-compatible"
}

func (p *OpenAICompatibleProvider) SupportsStreaming() bool { return true }

func (p *OpenAICompatibleProvider) SupportsReasoning(model string) bool { return false }

func (p *OpenAICompatibleProvider) SupportsReasoningEffort(model string) bool { return false }

func (p *OpenAICompatibleProvider) SupportsTools(model string) bool {
	family := DetectModelFamily(model)
	return SupportsToolCalling(model, family)
}

func (p *OpenAICompatibleProvider) SupportsStructuredOutput(model string) bool { return false }

func (p *OpenAICompatibleProvider) SupportedModels() []string { return nil }

func (p *OpenAICompatibleProvider) ValidateRequest(req *LlmRequest) error {
	if req == nil {
		return NewInvalidRequest("OpenAICompatible", "request cannot be nil")
	}
	return nil
}

// OpenAI-compatible API response structures (same shape as OpenAI's).
type openAICompatibleModelsList struct {
	Data []openAICompatibleModelData `json:"data"`
}

type openAICompatibleModelData struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (p *OpenAICompatibleProvider) ListModels(ctx context.Context) ([]*ModelInfo, error) {
	modelsURL := p.baseURL + "/models"

	req, err := http.NewRequestWithContext(ctx, "GET", modelsURL, nil)
	if err != nil {
		return nil, NewInvalidRequest("OpenAICompatible", "failed to create request: "+err.Error())
	}

	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewNetworkError("OpenAICompatible", "failed to list models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewProviderError("OpenAICompatible", "status "+http.StatusText(resp.StatusCode)+": "+strings.TrimSpace(string(body)), "")
	}

	var modelsList openAICompatibleModelsList
	if err := json.NewDecoder(resp.Body).Decode(&modelsList); err != nil {
		return nil, NewProtocolError("OpenAICompatible", "failed to decode response: "+err.Error())
	}

	models := make([]*ModelInfo, 0)
	for _, m := range modelsList.Data {
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
			Provider:            "openai-compatible",
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

func (p *OpenAICompatibleProvider) CreateClient(modelID string) (LlmClient, error) {
	return NewOpenAICompatibleClient(p.apiKey, p.baseURL, modelID)
}

func (p *OpenAICompatibleProvider) ValidateAPIKey(ctx context.Context) error {
	modelsURL := p.baseURL + "/models"

	req, err := http.NewRequestWithContext(ctx, "GET", modelsURL, nil)
	if err != nil {
		return NewInvalidRequest("OpenAICompatible", "failed to create request: "+err.Error())
	}

	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return NewNetworkError("OpenAICompatible", "connection failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return NewAuthenticationError("OpenAICompatible", "API key")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return NewProviderError("OpenAICompatible", "status "+http.StatusText(resp.StatusCode)+": "+strings.TrimSpace(string(body)), "")
	}

	return nil
}
