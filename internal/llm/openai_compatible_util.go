package llm

import "encoding/json"

// convertRequestToOpenAI is a helper shared between native OpenAI and OpenAI-compatible
// clients. It converts an LlmRequest into an openAIChatRequest, injecting the
// system prompt as the first message and normalizing roles/tool calls.
func convertRequestToOpenAI(req *LlmRequest, model string, stream bool, enforceOpenAITemperature bool) (*openAIChatRequest, error) {
	messages, err := convertMessagesToOpenAIFromUnified(req, true)
	if err != nil {
		return nil, err
	}

	payload := &openAIChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}

	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}

	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}

	if len(req.Tools) > 0 {
		payload.Tools = convertToolDefinitionsToChatWire(req.Tools)
	}

	return payload, nil
}

func convertToolDefinitionsToChatWire(tools []ToolDefinition) []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(tools))
	for _, def := range tools {
		if def.Name == "" {
			continue
		}

		function := map[string]interface{}{
			"name":       def.Name,
			"parameters": def.Parameters,
		}
		if def.Description != "" {
			function["description"] = def.Description
		}
		if def.Strict != nil {
			function["strict"] = *def.Strict
		}

		result = append(result, map[string]interface{}{
			"type":     "function",
			"function": function,
		})
	}
	return result
}

// stringifyArguments normalizes a decoded JSON value (string or object) back
// into the raw JSON string representation ToolCall.Arguments expects.
func stringifyArguments(raw interface{}) string {
	switch value := raw.(type) {
	case nil:
		return "{}"
	case string:
		if value == "" {
			return "{}"
		}
		return value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "{}"
		}
		return string(encoded)
	}
}
