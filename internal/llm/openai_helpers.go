package llm

import (
	"context"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
)

func requiresResponsesAPI(modelName string) bool {
	model := strings.TrimSpace(strings.ToLower(modelName))
	if model == "" {
		return false
	}

	if strings.HasPrefix(model, "gpt-5") {
		return true
	}

	if strings.Contains(model, "codex") {
		return true
	}

	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") {
		return true
	}

	if strings.HasPrefix(model, "gpt-4.1") {
		return true
	}

	return false
}

func buildResponsesInput(messages []CanonicalMessage) (responses.ResponseInputParam, error) {
	input := make(responses.ResponseInputParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			if msg.ToolCallID == "" {
				continue
			}
			input = append(input, responses.ResponseInputItemParamOfFunctionCallOutput(msg.ToolCallID, msg.Content))
		case RoleAssistant:
			if strings.TrimSpace(msg.Content) != "" {
				input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range msg.ToolCalls {
				if tc.FunctionName == "" {
					continue
				}
				callID := tc.ID
				if callID == "" {
					callID = "call_" + tc.FunctionName
				}
				input = append(input, responses.ResponseInputItemParamOfFunctionCall(tc.Arguments, callID, tc.FunctionName))
			}
		case RoleSystem:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleSystem))
		default:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
		}
	}

	return input, nil
}

func convertResponsesTools(tools []ToolDefinition) []responses.ToolUnionParam {
	result := make([]responses.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		if def.Name == "" {
			continue
		}

		strict := def.Strict != nil && *def.Strict
		variant := responses.ToolParamOfFunction(def.Name, def.Parameters, strict)
		if def.Description != "" && variant.OfFunction != nil {
			variant.OfFunction.Description = openai.String(def.Description)
		}

		result = append(result, variant)
	}
	return result
}

func convertResponsesCompletion(resp *responses.Response) *LlmResponse {
	if resp == nil {
		return &LlmResponse{FinishReason: FinishStop}
	}

	toolCalls := extractResponsesToolCalls(resp.Output)
	reason := FinishStop
	if len(toolCalls) > 0 {
		reason = FinishToolCalls
	} else if string(resp.Status) == "incomplete" {
		reason = FinishLength
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return &LlmResponse{
		Content:      resp.OutputText(),
		ToolCalls:    toolCalls,
		Usage:        usage,
		FinishReason: reason,
	}
}

func extractResponsesToolCalls(items []responses.ResponseOutputItemUnion) []ToolCall {
	var toolCalls []ToolCall
	for _, item := range items {
		if item.Type != "function_call" {
			continue
		}

		call := item.AsFunctionCall()
		identifier := call.CallID
		if identifier == "" {
			identifier = call.ID
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:           identifier,
			FunctionName: call.Name,
			Arguments:    call.Arguments,
		})
	}
	return toolCalls
}

func isOpenAITemperatureUnsupported(modelName string) bool {
	modelLower := strings.ToLower(strings.TrimSpace(modelName))
	if modelLower == "" {
		return false
	}

	if strings.Contains(modelLower, "o1") ||
		strings.Contains(modelLower, "o3") ||
		strings.Contains(modelLower, "reasoning") {
		return true
	}

	if strings.HasPrefix(modelLower, "gpt-") {
		return true
	}

	return false
}

func performResponsesCompletion(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*LlmResponse, error) {
	resp, err := client.Responses.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return convertResponsesCompletion(resp), nil
}

func performResponsesStream(ctx context.Context, client *openai.Client, params responses.ResponseNewParams, onEvent func(LlmStreamEvent) error) error {
	stream := client.Responses.NewStreaming(ctx, params)

	var contentBuilder strings.Builder
	var lastResponse *responses.Response
	reasoning := &ReasoningBuffer{}

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "response.output_text.delta":
			delta := event.AsResponseOutputTextDelta()
			if delta.Delta == "" {
				continue
			}
			contentBuilder.WriteString(delta.Delta)
			if err := onEvent(LlmStreamEvent{Kind: StreamToken, Delta: delta.Delta}); err != nil {
				return err
			}
		case "response.reasoning_text.delta":
			delta := event.AsResponseReasoningTextDelta()
			if text, ok := reasoning.Push(delta.Delta); ok {
				if err := onEvent(LlmStreamEvent{Kind: StreamReasoning, Delta: text}); err != nil {
					return err
				}
			}
		case "response.reasoning_summary_text.delta":
			delta := event.AsResponseReasoningSummaryTextDelta()
			if text, ok := reasoning.Push(delta.Delta); ok {
				if err := onEvent(LlmStreamEvent{Kind: StreamReasoning, Delta: text}); err != nil {
					return err
				}
			}
		case "response.completed":
			completed := event.AsResponseCompletedEvent()
			lastResponse = &completed.Response
		case "response.failed":
			failed := event.AsResponseFailed()
			return responsesFailureError(&failed.Response)
		case "response.incomplete":
			incomplete := event.AsResponseIncomplete()
			return responsesFailureError(&incomplete.Response)
		case "error":
			errEvent := event.AsError()
			return NewProviderError("OpenAI", errEvent.Message, "")
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}

	resp := convertResponsesCompletion(lastResponse)
	if resp.Content == "" {
		resp.Content = contentBuilder.String()
	}
	if reasoningText, _ := reasoning.Finalize(); reasoningText != "" {
		resp.Reasoning = reasoningText
	}
	return onEvent(LlmStreamEvent{Kind: StreamCompleted, Response: resp})
}

// responsesFailureError maps a terminal failed/incomplete Responses-API
// event onto the unified provider error taxonomy.
func responsesFailureError(resp *responses.Response) error {
	message := "response did not complete"
	if resp != nil {
		if resp.Error.Message != "" {
			message = resp.Error.Message
		} else if resp.IncompleteDetails.Reason != "" {
			message = "incomplete: " + string(resp.IncompleteDetails.Reason)
		}
	}
	return NewProviderError("OpenAI", message, "")
}
