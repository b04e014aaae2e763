package openaicompat

import (
	"encoding/json"

	"github.com/nevindra/careerflow"
)

// ParseResponse converts an OpenAI-format ChatResponse to a careerflow
// ChatResponse. It extracts content, tool calls, and usage from choices[0].
func ParseResponse(resp ChatResponse) (careerflow.ChatResponse, error) {
	var out careerflow.ChatResponse

	if len(resp.Choices) == 0 {
		return out, nil
	}

	choice := resp.Choices[0]
	if choice.Message != nil {
		out.Content = choice.Message.Content
		out.ToolCalls = ParseToolCalls(choice.Message.ToolCalls)
	}

	if resp.Usage != nil {
		out.Usage = careerflow.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}

	return out, nil
}

// ParseToolCalls converts OpenAI tool call requests to careerflow ToolCalls.
// OpenAI returns function.arguments as a JSON string; malformed arguments
// degrade to an empty object so the registry can still report the failure.
func ParseToolCalls(tcs []ToolCallRequest) []careerflow.ToolCall {
	if len(tcs) == 0 {
		return nil
	}

	out := make([]careerflow.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		out = append(out, careerflow.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return out
}
