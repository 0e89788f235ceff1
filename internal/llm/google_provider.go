package llm

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// GoogleProvider implements LlmProvider using the official Google GenAI SDK.
type GoogleProvider struct {
	apiKey        string
	cacheSettings GeminiCacheSettings
}

// NewGoogleProvider creates a new Google provider.
func NewGoogleProvider(apiKey string, cacheSettings GeminiCacheSettings) *GoogleProvider {
	return &GoogleProvider{apiKey: apiKey, cacheSettings: cacheSettings}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) SupportsStreaming() bool { return true }

func (p *GoogleProvider) SupportsReasoning(model string) bool {
	return geminiSupportsThinking(model)
}

func (p *GoogleProvider) SupportsReasoningEffort(model string) bool {
	return p.SupportsReasoning(model)
}

func (p *GoogleProvider) SupportsTools(model string) bool { return true }

func (p *GoogleProvider) SupportsStructuredOutput(model string) bool { return true }

func (p *GoogleProvider) SupportedModels() []string {
	return []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
		"gemini-1.5-pro",
		"gemini-1.5-flash",
	}
}

func (p *GoogleProvider) ValidateRequest(req *LlmRequest) error {
	if req == nil {
		return NewInvalidRequest("Gemini", "request cannot be nil")
	}
	return nil
}

func (p *GoogleProvider) ListModels(ctx context.Context) ([]*ModelInfo, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewNetworkError("Gemini", "failed to create client", err)
	}

	models := make([]*ModelInfo, 0)
	for model, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, NewNetworkError("Gemini", "failed to iterate models", err)
		}
		if model == nil || model.Name == "" {
			continue
		}

		supported := append([]string(nil), model.SupportedActions...)

		info := &ModelInfo{
			ID:                  model.Name,
			Name:                googleModelDisplayName(model),
			Provider:            "google",
			Description:         model.Description,
			ContextWindow:       int(model.InputTokenLimit),
			MaxOutputTokens:     int(model.OutputTokenLimit),
			SupportsToolCalling: googleSupportsToolCalling(supported),
			SupportsStreaming:   googleSupportsStreaming(supported),
			OwnedBy:             "google",
			Capabilities:        supported,
		}

		models = append(models, info)
	}

	return models, nil
}

func (p *GoogleProvider) CreateClient(modelID string) (LlmClient, error) {
	return NewGoogleAIClient(p.apiKey, modelID, p.cacheSettings)
}

func (p *GoogleProvider) ValidateAPIKey(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "api key") ||
			strings.Contains(msg, "permission") ||
			strings.Contains(msg, "unauthorized") {
			return NewAuthenticationError("Gemini", "GOOGLE_API_KEY/GEMINI_API_KEY")
		}
		return err
	}
	return nil
}

func googleModelDisplayName(model *genai.Model) string {
	if model == nil {
		return ""
	}
	if model.DisplayName != "" {
		return model.DisplayName
	}
	return model.Name
}

func googleSupportsStreaming(methods []string) bool {
	for _, method := range methods {
		switch normalizeGoogleCapabilityName(method) {
		case "streamgeneratecontent":
			return true
		}
	}
	// Default to true when generateContent is available since streaming is typically supported alongside it
	for _, method := range methods {
		switch normalizeGoogleCapabilityName(method) {
		case "generatecontent":
			return true
		}
	}
	return false
}

func googleSupportsToolCalling(methods []string) bool {
	for _, method := range methods {
		switch normalizeGoogleCapabilityName(method) {
		case "functioncall", "tooluse":
			return true
		}
	}
	return false
}

func normalizeGoogleCapabilityName(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	return normalized
}
