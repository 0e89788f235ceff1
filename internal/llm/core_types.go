package llm

import "context"

// Role identifies the speaker of a canonical Message.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleTool
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "user"
	}
}

// FinishReason is the terminal reason a generation stopped.
type FinishReason int

const (
	FinishStop FinishReason = iota
	FinishLength
	FinishToolCalls
	FinishContentFilter
	FinishError
)

// ToolChoiceMode selects how a model may invoke tools.
type ToolChoiceMode int

const (
	ToolChoiceAuto ToolChoiceMode = iota
	ToolChoiceNone
	ToolChoiceAny
	ToolChoiceSpecific
)

// ToolChoice mirrors spec's tagged union: Auto | None | Any | Specific(name).
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // only meaningful when Mode == ToolChoiceSpecific
}

// ReasoningEffort is the canonical reasoning-effort level, mapped per-provider
// by each adapter (see the per-adapter mapping tables).
type ReasoningEffort int

const (
	ReasoningNone ReasoningEffort = iota
	ReasoningMinimal
	ReasoningLow
	ReasoningMedium
	ReasoningHigh
	ReasoningXHigh
)

// ToolCall is a single invocation requested by the model.
type ToolCall struct {
	ID               string
	FunctionName     string
	Arguments        string // always a syntactically valid JSON object serialization; defaults to "{}"
	ThoughtSignature string // opaque, Gemini-only; empty for other providers
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema
	Strict      *bool
}

// CanonicalMessage is the provider-neutral chat message (C1).
//
// Invariants: a Tool message must carry ToolCallID matching an earlier
// Assistant ToolCall.ID; an Assistant message may carry Content, ToolCalls,
// or both; System messages are hoisted out by adapters and must not appear
// mid-stream.
type CanonicalMessage struct {
	Role             Role
	Content          string
	Reasoning        string
	ToolCalls        []ToolCall
	ToolCallID       string
	ThoughtSignature string

	// Optional native-format side channel used only by C4's cache-metadata
	// propagation; never required by C1's own invariants.
	NativeFormat      interface{}
	NativeProvider    string
	NativeModelFamily string
}

// ParallelToolConfig controls parallel tool-call behavior where supported.
type ParallelToolConfig struct {
	Disable     bool
	MaxParallel int
	Encourage   bool
}

// LlmRequest is the canonical, caller-owned request. Adapters borrow it;
// they never mutate it.
type LlmRequest struct {
	Messages           []CanonicalMessage
	SystemPrompt       string
	Tools              []ToolDefinition
	Model              string
	MaxTokens          int
	Temperature        float64
	TopP               float64
	TopK               int
	PresencePenalty    float64
	FrequencyPenalty   float64
	StopSequences      []string
	Stream             bool
	ToolChoice         ToolChoice
	ParallelToolCalls  *bool
	ParallelToolConfig *ParallelToolConfig
	ReasoningEffort    ReasoningEffort
	OutputFormat       map[string]interface{} // JSON Schema, structured-output request
	Verbosity          string
}

// Usage reports token accounting, including prompt-cache metrics.
type Usage struct {
	PromptTokens        int
	CompletionTokens    int
	TotalTokens         int
	CachedPromptTokens  int
	CacheCreationTokens int
	CacheReadTokens     int
}

// LlmResponse is the canonical single-shot response.
type LlmResponse struct {
	Content          string
	ToolCalls        []ToolCall
	Usage            Usage
	FinishReason     FinishReason
	FinishError      string // populated when FinishReason == FinishError
	Reasoning        string
	ReasoningDetails interface{} // opaque; no adapter in this module sets it (see DESIGN.md Open Question Decision)
	RequestID        string
	OrganizationID   string
}

// StreamEventKind tags an LlmStreamEvent variant.
type StreamEventKind int

const (
	StreamToken StreamEventKind = iota
	StreamReasoning
	StreamCompleted
)

// LlmStreamEvent is the tagged variant emitted during streaming. Ordering
// invariant: all Token/Reasoning events for a turn precede the single
// terminal Completed event.
type LlmStreamEvent struct {
	Kind     StreamEventKind
	Delta    string       // set for StreamToken / StreamReasoning
	Response *LlmResponse // set for StreamCompleted
}

// LlmClient is a stateful, constructed-once client bound to one model.
type LlmClient interface {
	GenerateModelName() string
	Generate(ctx context.Context, req *LlmRequest) (*LlmResponse, error)
	Stream(ctx context.Context, req *LlmRequest, onEvent func(LlmStreamEvent) error) error
}

// LlmProvider is the stateless capability that manufactures clients and
// lists models for one wire dialect.
type LlmProvider interface {
	Name() string
	SupportsStreaming() bool
	SupportsReasoning(model string) bool
	SupportsReasoningEffort(model string) bool
	SupportsTools(model string) bool
	SupportsStructuredOutput(model string) bool
	SupportedModels() []string
	ValidateRequest(req *LlmRequest) error
	CreateClient(modelID string) (LlmClient, error)

	// ListModels fetches the live catalog from the provider's API, falling
	// back to a hardcoded list on failure. ValidateAPIKey exercises a
	// minimal request to confirm the configured credential is accepted.
	ListModels(ctx context.Context) ([]*ModelInfo, error)
	ValidateAPIKey(ctx context.Context) error
}
