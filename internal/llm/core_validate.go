package llm

import (
	"fmt"
	"strings"
)

// ValidateRequest checks non-empty messages, tool-message correlation, and
// basic structural invariants common to every provider (C1 §4.1). Provider
// specific checks live in ValidateMessageForProvider.
func ValidateRequest(req *LlmRequest, providerTag string) error {
	if req == nil {
		return NewInvalidRequest(providerTag, "request is nil")
	}
	if len(req.Messages) == 0 {
		return NewInvalidRequest(providerTag, "messages must be non-empty")
	}
	if strings.TrimSpace(req.Model) == "" {
		return NewInvalidRequest(providerTag, "model must be non-empty")
	}

	seenToolNames := make(map[string]bool, len(req.Tools))
	for _, tool := range req.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return NewInvalidRequest(providerTag, "tool definition missing name")
		}
		if seenToolNames[tool.Name] {
			return NewInvalidRequest(providerTag, fmt.Sprintf("duplicate tool name %q", tool.Name))
		}
		seenToolNames[tool.Name] = true
	}

	priorToolCallIDs := make(map[string]bool)
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			return NewInvalidRequest(providerTag, "system messages must be hoisted out, not present mid-stream")
		}
		if msg.Role == RoleAssistant {
			for _, tc := range msg.ToolCalls {
				if strings.TrimSpace(tc.ID) == "" {
					return NewInvalidRequest(providerTag, "assistant tool_call missing id")
				}
				priorToolCallIDs[tc.ID] = true
			}
		}
		if msg.Role == RoleTool {
			if strings.TrimSpace(msg.ToolCallID) == "" {
				return NewInvalidRequest(providerTag, "tool message missing tool_call_id")
			}
			if !priorToolCallIDs[msg.ToolCallID] {
				return NewInvalidRequest(providerTag, fmt.Sprintf("tool message tool_call_id %q does not match a prior assistant tool call", msg.ToolCallID))
			}
		}
	}

	if req.OutputFormat != nil && providerTag != "Anthropic" {
		// Structured output is only validated/enforced for Anthropic (C5);
		// other providers accept the schema opaquely, so no error here.
	}

	return nil
}

// ValidateMessageForProvider performs provider-specific structural checks,
// e.g. OpenAI requires tool_call_id on Tool messages (already guaranteed by
// ValidateRequest, but kept distinct per spec's two-converter contract so an
// adapter can add dialect-specific rules without touching the shared path).
func ValidateMessageForProvider(msg *CanonicalMessage, providerTag string) error {
	switch providerTag {
	case "OpenAI":
		if msg.Role == RoleTool && strings.TrimSpace(msg.ToolCallID) == "" {
			return NewInvalidRequest(providerTag, "tool message requires tool_call_id")
		}
	case "Anthropic":
		if msg.Role == RoleAssistant && msg.Content == "" && len(msg.ToolCalls) == 0 {
			return NewInvalidRequest(providerTag, "assistant message must carry content, tool_calls, or both")
		}
	}
	return nil
}

// ToProviderFormat renders a ToolChoice as the wire JSON shape for the given
// provider tag.
func (tc ToolChoice) ToProviderFormat(providerTag string) interface{} {
	switch providerTag {
	case "Anthropic":
		switch tc.Mode {
		case ToolChoiceAuto:
			return map[string]interface{}{"type": "auto"}
		case ToolChoiceNone:
			return nil // Anthropic has no explicit "none"; caller omits tools instead
		case ToolChoiceAny:
			return map[string]interface{}{"type": "any"}
		case ToolChoiceSpecific:
			return map[string]interface{}{"type": "tool", "name": tc.Name}
		}
	case "Gemini":
		switch tc.Mode {
		case ToolChoiceAuto:
			return map[string]interface{}{"mode": "AUTO"}
		case ToolChoiceNone:
			return map[string]interface{}{"mode": "NONE"}
		case ToolChoiceAny:
			return map[string]interface{}{"mode": "ANY"}
		case ToolChoiceSpecific:
			return map[string]interface{}{"mode": "ANY", "allowed_function_names": []string{tc.Name}}
		}
	default: // OpenAI-family dialects (OpenAI, OpenRouter, generic-compatible)
		switch tc.Mode {
		case ToolChoiceAuto:
			return "auto"
		case ToolChoiceNone:
			return "none"
		case ToolChoiceAny:
			return "required"
		case ToolChoiceSpecific:
			return map[string]interface{}{"type": "function", "function": map[string]string{"name": tc.Name}}
		}
	}
	return "auto"
}

// AsOpenAIStr, AsAnthropicStr, AsGeminiStr render a Role in each dialect's
// vocabulary.
func (r Role) AsOpenAIStr() string {
	if r == RoleSystem {
		return "system"
	}
	return r.String()
}

func (r Role) AsAnthropicStr() string {
	if r == RoleTool {
		return "user" // tool results become user-role messages carrying a tool_result block
	}
	return r.String()
}

func (r Role) AsGeminiStr() string {
	switch r {
	case RoleAssistant:
		return "model"
	default:
		return "user"
	}
}
