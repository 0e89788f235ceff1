package llm

// ModelInfo represents detailed information about an LLM model
type ModelInfo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Provider            string   `json:"provider"`
	Description         string   `json:"description,omitempty"`
	ContextWindow       int      `json:"context_window,omitempty"`    // Input context window size
	MaxOutputTokens     int      `json:"max_output_tokens,omitempty"` // Maximum output tokens
	SupportsToolCalling bool     `json:"supports_tool_calling"`
	SupportsStreaming   bool     `json:"supports_streaming"`
	CreatedAt           string   `json:"created_at,omitempty"`
	OwnedBy             string   `json:"owned_by,omitempty"`
	Capabilities        []string `json:"capabilities,omitempty"`
}
