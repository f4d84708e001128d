package transform

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmux/llmux/internal/types"
)

// FinishReason maps an Anthropic stop_reason onto the OpenAI vocabulary.
func FinishReason(stopReason string) string {
	switch stopReason {
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	case "end_turn", "stop_sequence", "":
		return "stop"
	default:
		return "stop"
	}
}

// MessageToChatCompletion converts a collected Messages API response into an
// OpenAI Chat Completions response. Thinking blocks surface as
// reasoning_content, tool_use blocks as tool_calls.
func MessageToChatCompletion(resp *types.MessageResponse, model, id string, created int64) *types.ChatCompletion {
	var text, reasoning strings.Builder
	var toolCalls []types.ChatToolCall

	for _, raw := range resp.Content {
		block := gjson.ParseBytes(raw)
		switch block.Get("type").String() {
		case types.BlockText:
			text.WriteString(block.Get("text").String())
		case types.BlockThinking:
			reasoning.WriteString(block.Get("thinking").String())
		case types.BlockToolUse:
			args := "{}"
			if input := block.Get("input"); input.Exists() {
				args = input.Raw
			}
			toolCalls = append(toolCalls, types.ChatToolCall{
				ID:   block.Get("id").String(),
				Type: "function",
				Function: types.ChatFunctionCall{
					Name:      block.Get("name").String(),
					Arguments: args,
				},
			})
		}
	}

	stopReason := ""
	if resp.StopReason != nil {
		stopReason = *resp.StopReason
	}

	msg := types.ChatResponseMessage{
		Role:             "assistant",
		Content:          types.StringPtr(text.String()),
		ReasoningContent: reasoning.String(),
		ToolCalls:        toolCalls,
	}

	return &types.ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []types.ChatChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: FinishReason(stopReason),
		}},
		Usage: &types.ChatUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// DecodeMessageResponse parses a raw Messages API response body.
func DecodeMessageResponse(body []byte) (*types.MessageResponse, error) {
	var resp types.MessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
