package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// OpenRouterProvider implements LlmProvider for OpenRouter.
type OpenRouterProvider struct {
	apiKey        string
	client        *http.Client
	cacheSettings OpenRouterCacheSettings
}

// NewOpenRouterProvider creates a new OpenRouter provider instance.
func NewOpenRouterProvider(apiKey string, cacheSettings OpenRouterCacheSettings) *OpenRouterProvider {
	return &OpenRouterProvider{
		apiKey:        apiKey,
		client:        &http.Client{},
		cacheSettings: cacheSettings,
	}
}

func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

func (p *OpenRouterProvider) SupportsStreaming() bool { return true }

func (p *OpenRouterProvider) SupportsReasoning(model string) bool {
	lowered := strings.ToLower(model)
	return strings.Contains(lowered, "thinking") || strings.Contains(lowered, "reasoning") ||
		strings.Contains(lowered, "o1") || strings.Contains(lowered, "o3") || strings.Contains(lowered, "r1")
}

func (p *OpenRouterProvider) SupportsReasoningEffort(model string) bool {
	return p.SupportsReasoning(model)
}

func (p *OpenRouterProvider) SupportsTools(model string) bool {
	family := DetectModelFamily(model)
	return SupportsToolCalling(model, family)
}

func (p *OpenRouterProvider) SupportsStructuredOutput(model string) bool { return false }

func (p *OpenRouterProvider) SupportedModels() []string { return nil }

func (p *OpenRouterProvider) ValidateRequest(req *LlmRequest) error {
	if req == nil {
		return NewInvalidRequest("OpenRouter", "request cannot be nil")
	}
	return nil
}

type openRouterModelsResponse struct {
	Data []openRouterModel `json:"data"`
}

type openRouterModel struct {
	ID                  string                 `json:"id"`
	CanonicalSlug       string                 `json:"canonical_slug"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description"`
	ContextLength       *float64               `json:"context_length"`
	SupportedParameters []string               `json:"supported_parameters"`
	DefaultParameters   map[string]interface{} `json:"default_parameters"`
	Architecture        struct {
		Modality string `json:"modality"`
	} `json:"architecture"`
	TopProvider struct {
		ContextLength       *float64 `json:"context_length"`
		MaxCompletionTokens *float64 `json:"max_completion_tokens"`
		IsModerated         bool     `json:"is_moderated"`
	} `json:"top_provider"`
}

func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openrouter.ai/api/v1/models", nil)
	if err != nil {
		return nil, NewInvalidRequest("OpenRouter", "failed to create request: "+err.Error())
	}

	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewNetworkError("OpenRouter", "failed to list models", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("OpenRouter", "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, openRouterHTTPError(resp.StatusCode, body)
	}

	var data openRouterModelsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, NewProtocolError("OpenRouter", "failed to decode response: "+err.Error())
	}

	models := make([]*ModelInfo, 0, len(data.Data))
	for _, model := range data.Data {
		capabilities := append([]string(nil), model.SupportedParameters...)
		if model.Architecture.Modality != "" {
			capabilities = append(capabilities, "modality:"+model.Architecture.Modality)
		}
		if model.CanonicalSlug != "" {
			capabilities = append(capabilities, "canonical:"+model.CanonicalSlug)
		}
		if len(model.DefaultParameters) > 0 {
			for key := range model.DefaultParameters {
				capabilities = append(capabilities, "default:"+key)
			}
		}

		// Get context window from API or detect
		contextWindow := openRouterContextWindow(model)
		if contextWindow == 0 {
			family := DetectModelFamily(model.ID)
			contextWindow = DetectContextWindow(model.ID, family)
		}

		// Get max output tokens from API, otherwise detect
		family := DetectModelFamily(model.ID)
		maxOutputTokens := 0
		if model.TopProvider.MaxCompletionTokens != nil {
			maxOutputTokens = int(*model.TopProvider.MaxCompletionTokens)
		}
		if maxOutputTokens == 0 {
			maxOutputTokens = DetectMaxOutputTokens(model.ID, family, contextWindow)
		}

		// Use name from API if available
		displayName := model.Name
		if displayName == "" {
			displayName = FormatModelDisplayName(model.ID, family)
		}

		info := &ModelInfo{
			ID:                  model.ID,
			Name:                displayName,
			Provider:            "openrouter",
			Description:         model.Description,
			ContextWindow:       contextWindow,
			MaxOutputTokens:     maxOutputTokens,
			SupportsToolCalling: openRouterSupportsToolCalling(model.SupportedParameters),
			SupportsStreaming:   openRouterSupportsStreaming(model.SupportedParameters),
			OwnedBy:             openRouterOwner(model.ID),
			Capabilities:        capabilities,
		}

		models = append(models, info)
	}

	return models, nil
}

func (p *OpenRouterProvider) CreateClient(modelID string) (LlmClient, error) {
	return NewOpenRouterClient(p.apiKey, modelID, p.cacheSettings)
}

func (p *OpenRouterProvider) ValidateAPIKey(ctx context.Context) error {
	url := strings.TrimRight(openRouterAPIBaseURL, "/") + "/key"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewInvalidRequest("OpenRouter", "failed to create request: "+err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterAppTitle)

	resp, err := p.client.Do(req)
	if err != nil {
		return NewNetworkError("OpenRouter", "validation failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return NewAuthenticationError("OpenRouter", "OPENROUTER_API_KEY")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return openRouterHTTPError(resp.StatusCode, body)
	}

	var keyResp struct {
		Data struct {
			Label string `json:"label"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&keyResp); err != nil {
		return NewProtocolError("OpenRouter", "failed to decode API key response: "+err.Error())
	}

	if strings.TrimSpace(keyResp.Data.Label) == "" {
		return NewAuthenticationError("OpenRouter", "OPENROUTER_API_KEY")
	}

	return nil
}

func openRouterContextWindow(model openRouterModel) int {
	if model.ContextLength != nil {
		return int(*model.ContextLength)
	}
	if model.TopProvider.ContextLength != nil {
		return int(*model.TopProvider.ContextLength)
	}
	return 0
}

func openRouterOwner(id string) string {
	if parts := strings.Split(id, "/"); len(parts) > 1 {
		return parts[0]
	}
	return "openrouter"
}

func openRouterSupportsToolCalling(params []string) bool {
	for _, param := range params {
		switch strings.ToLower(param) {
		case "tools", "tool_choice", "functions", "function_call":
			return true
		}
	}
	return false
}

func openRouterSupportsStreaming(params []string) bool {
	for _, param := range params {
		normalized := strings.ToLower(strings.TrimSpace(param))
		if strings.Contains(normalized, "stream") {
			return true
		}
	}
	return false
}
