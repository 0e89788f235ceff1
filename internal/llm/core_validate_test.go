package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *LlmRequest {
	return &LlmRequest{
		Model: "claude-sonnet-4.5",
		Messages: []CanonicalMessage{
			{Role: RoleUser, Content: "hello"},
		},
	}
}

func TestValidateRequestRejectsNilAndEmpty(t *testing.T) {
	assert.Error(t, ValidateRequest(nil, "Anthropic"))

	empty := &LlmRequest{Model: "x"}
	assert.Error(t, ValidateRequest(empty, "Anthropic"))

	noModel := &LlmRequest{Messages: []CanonicalMessage{{Role: RoleUser, Content: "hi"}}}
	assert.Error(t, ValidateRequest(noModel, "Anthropic"))
}

func TestValidateRequestAcceptsWellFormedRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(validRequest(), "Anthropic"))
}

func TestValidateRequestRejectsDuplicateToolNames(t *testing.T) {
	req := validRequest()
	req.Tools = []ToolDefinition{{Name: "read_file"}, {Name: "read_file"}}
	assert.Error(t, ValidateRequest(req, "OpenAI"))
}

func TestValidateRequestRejectsMidStreamSystemMessage(t *testing.T) {
	req := validRequest()
	req.Messages = append(req.Messages, CanonicalMessage{Role: RoleSystem, Content: "nope"})
	assert.Error(t, ValidateRequest(req, "OpenAI"))
}

func TestValidateRequestRequiresToolCallIDCorrelation(t *testing.T) {
	req := validRequest()
	req.Messages = append(req.Messages,
		CanonicalMessage{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", FunctionName: "f"}}},
		CanonicalMessage{Role: RoleTool, ToolCallID: "call_1", Content: "ok"},
	)
	assert.NoError(t, ValidateRequest(req, "OpenAI"))

	req.Messages = append(req.Messages, CanonicalMessage{Role: RoleTool, ToolCallID: "call_unknown", Content: "x"})
	assert.Error(t, ValidateRequest(req, "OpenAI"))
}

func TestValidateMessageForProviderOpenAIRequiresToolCallID(t *testing.T) {
	msg := &CanonicalMessage{Role: RoleTool, ToolCallID: ""}
	assert.Error(t, ValidateMessageForProvider(msg, "OpenAI"))
}

func TestValidateMessageForProviderAnthropicRequiresContentOrToolCalls(t *testing.T) {
	empty := &CanonicalMessage{Role: RoleAssistant}
	assert.Error(t, ValidateMessageForProvider(empty, "Anthropic"))

	withContent := &CanonicalMessage{Role: RoleAssistant, Content: "hi"}
	assert.NoError(t, ValidateMessageForProvider(withContent, "Anthropic"))

	withToolCalls := &CanonicalMessage{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1"}}}
	assert.NoError(t, ValidateMessageForProvider(withToolCalls, "Anthropic"))
}

func TestToolChoiceToProviderFormatPerDialect(t *testing.T) {
	specific := ToolChoice{Mode: ToolChoiceSpecific, Name: "read_file"}

	anthropic, ok := specific.ToProviderFormat("Anthropic").(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "tool", anthropic["type"])
	assert.Equal(t, "read_file", anthropic["name"])

	gemini, ok := specific.ToProviderFormat("Gemini").(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ANY", gemini["mode"])

	openai, ok := specific.ToProviderFormat("OpenAI").(map[string]interface{})
	require.True(t, ok)
	fn, ok := openai["function"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "read_file", fn["name"])

	assert.Equal(t, "required", ToolChoice{Mode: ToolChoiceAny}.ToProviderFormat("OpenAI"))
	assert.Nil(t, ToolChoice{Mode: ToolChoiceNone}.ToProviderFormat("Anthropic"))
}

func TestRoleDialectStrings(t *testing.T) {
	assert.Equal(t, "system", RoleSystem.AsOpenAIStr())
	assert.Equal(t, "user", RoleTool.AsAnthropicStr())
	assert.Equal(t, "model", RoleAssistant.AsGeminiStr())
	assert.Equal(t, "user", RoleUser.AsGeminiStr())
}
