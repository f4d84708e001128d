// Package transform converts between the OpenAI Chat Completions dialect and
// the Anthropic Messages dialect, in both directions.
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmux/llmux/internal/types"
)

// effortBudgets maps OpenAI reasoning_effort values onto thinking budgets.
var effortBudgets = map[string]int{
	"low":    4096,
	"medium": 16000,
	"high":   32000,
}

// ChatRequestToMessages converts an OpenAI Chat Completions request into an
// Anthropic Messages request. System and developer turns fold into the system
// field, tool_calls become tool_use blocks, and tool turns become tool_result
// blocks on a user message.
func ChatRequestToMessages(req *types.ChatCompletionRequest) (*types.MessagesRequest, error) {
	out := &types.MessagesRequest{
		Model:       req.Model,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	out.MaxTokens = req.MaxCompletionTokens
	if out.MaxTokens == 0 {
		out.MaxTokens = req.MaxTokens
	}

	if req.ReasoningEffort != "" {
		effort := strings.ToLower(strings.TrimSpace(req.ReasoningEffort))
		if budget, ok := effortBudgets[effort]; ok {
			out.Thinking = &types.ThinkingConfig{Type: "enabled", BudgetTokens: budget}
		}
	}

	out.StopSequences = stopSequences(req.Stop)
	out.Tools, out.ToolChoice = convertTools(req.Tools, req.ToolChoice)

	var systemParts []string
	var pendingToolResults []types.ContentBlock

	flushToolResults := func() {
		if len(pendingToolResults) == 0 {
			return
		}
		out.Messages = append(out.Messages, types.Message{
			Role:    "user",
			Content: types.BlocksContent(pendingToolResults),
		})
		pendingToolResults = nil
	}

	for _, m := range req.Messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case "system", "developer":
			if txt := types.ChatMessageText(m.Content); txt != "" {
				systemParts = append(systemParts, txt)
			}

		case "tool":
			pendingToolResults = append(pendingToolResults, types.ContentBlock{
				Type:      types.BlockToolResult,
				ToolUseID: m.ToolCallID,
				Content:   types.TextContent(types.ChatMessageText(m.Content)),
			})

		case "user":
			flushToolResults()
			out.Messages = append(out.Messages, types.Message{
				Role:    "user",
				Content: userContent(m.Content),
			})

		case "assistant":
			flushToolResults()
			msg, ok := assistantMessage(m)
			if ok {
				out.Messages = append(out.Messages, msg)
			}

		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	flushToolResults()

	if len(systemParts) > 0 {
		out.System = types.TextContent(strings.Join(systemParts, "\n\n"))
	}
	return out, nil
}

// userContent keeps plain strings as strings and converts array parts into
// text blocks, so downstream scanning sees the same shapes clients sent.
func userContent(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return types.TextContent("")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return types.TextContent(s)
	}
	var parts []types.ChatContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return types.TextContent("")
	}
	blocks := make([]types.ContentBlock, 0, len(parts))
	for _, p := range parts {
		if p.Type == "" || p.Type == "text" {
			blocks = append(blocks, types.ContentBlock{Type: types.BlockText, Text: p.Text})
		}
	}
	if len(blocks) == 0 {
		return types.TextContent("")
	}
	return types.BlocksContent(blocks)
}

func assistantMessage(m types.ChatMessage) (types.Message, bool) {
	text := types.ChatMessageText(m.Content)
	if len(m.ToolCalls) == 0 {
		if text == "" {
			return types.Message{}, false
		}
		return types.Message{Role: "assistant", Content: types.TextContent(text)}, true
	}

	var blocks []types.ContentBlock
	if text != "" {
		blocks = append(blocks, types.ContentBlock{Type: types.BlockText, Text: text})
	}
	for i, tc := range m.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("toolu_%d", i+1)
		}
		var input any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = map[string]any{}
			}
		} else {
			input = map[string]any{}
		}
		blocks = append(blocks, types.ContentBlock{
			Type:  types.BlockToolUse,
			ID:    id,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return types.Message{Role: "assistant", Content: types.BlocksContent(blocks)}, true
}

func stopSequences(stop any) []string {
	switch v := stop.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func convertTools(tools []types.ChatTool, choice any) ([]types.Tool, any) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Function.Name == "" {
			continue
		}
		params := t.Function.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, types.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: params,
		})
	}
	if len(out) == 0 {
		return nil, nil
	}

	switch v := choice.(type) {
	case string:
		switch v {
		case "required":
			return out, map[string]any{"type": "any"}
		case "none":
			return nil, nil
		default:
			return out, map[string]any{"type": "auto"}
		}
	case map[string]any:
		if fn, ok := v["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok && name != "" {
				return out, map[string]any{"type": "tool", "name": name}
			}
		}
	}
	return out, nil
}
