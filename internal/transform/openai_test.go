package transform

import (
	"encoding/json"
	"testing"

	"github.com/llmux/llmux/internal/types"
)

func chatMsg(role, content string) types.ChatMessage {
	raw, _ := json.Marshal(content)
	return types.ChatMessage{Role: role, Content: raw}
}

func TestChatRequestToMessagesBasic(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model:     "gpt-4o",
		MaxTokens: 256,
		Stream:    true,
		Messages: []types.ChatMessage{
			chatMsg("system", "be terse"),
			chatMsg("developer", "prefer bullet points"),
			chatMsg("user", "hello"),
			chatMsg("assistant", "hi there"),
			chatMsg("user", "bye"),
		},
	}
	out, err := ChatRequestToMessages(req)
	if err != nil {
		t.Fatal(err)
	}

	if out.MaxTokens != 256 || !out.Stream {
		t.Errorf("request fields: %+v", out)
	}
	sys, err := types.ParseSystemText(out.System)
	if err != nil {
		t.Fatal(err)
	}
	if sys != "be terse\n\nprefer bullet points" {
		t.Errorf("system: %q", sys)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("messages: got %d", len(out.Messages))
	}
	if out.Messages[1].Role != "assistant" {
		t.Errorf("roles: %+v", out.Messages)
	}
}

func TestChatRequestMaxCompletionTokensWins(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model:               "gpt-4o",
		MaxTokens:           100,
		MaxCompletionTokens: 900,
		Messages:            []types.ChatMessage{chatMsg("user", "hi")},
	}
	out, err := ChatRequestToMessages(req)
	if err != nil {
		t.Fatal(err)
	}
	if out.MaxTokens != 900 {
		t.Errorf("max_tokens: got %d, want 900", out.MaxTokens)
	}
}

func TestChatRequestReasoningEffort(t *testing.T) {
	tests := []struct {
		effort string
		budget int
	}{
		{"low", 4096},
		{"medium", 16000},
		{"HIGH", 32000},
	}
	for _, tt := range tests {
		req := &types.ChatCompletionRequest{
			Model:           "gpt-4o",
			ReasoningEffort: tt.effort,
			Messages:        []types.ChatMessage{chatMsg("user", "hi")},
		}
		out, err := ChatRequestToMessages(req)
		if err != nil {
			t.Fatal(err)
		}
		if out.Thinking == nil || out.Thinking.BudgetTokens != tt.budget {
			t.Errorf("effort %q: got %+v, want budget %d", tt.effort, out.Thinking, tt.budget)
		}
	}

	req := &types.ChatCompletionRequest{
		Model:           "gpt-4o",
		ReasoningEffort: "extreme",
		Messages:        []types.ChatMessage{chatMsg("user", "hi")},
	}
	out, _ := ChatRequestToMessages(req)
	if out.Thinking != nil {
		t.Errorf("unknown effort created config: %+v", out.Thinking)
	}
}

func TestChatRequestToolRoundTrip(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Tools: []types.ChatTool{{
			Type: "function",
			Function: types.ChatToolFunction{
				Name:        "get_weather",
				Description: "Look up weather",
				Parameters:  map[string]any{"type": "object"},
			},
		}},
		ToolChoice: "required",
		Messages: []types.ChatMessage{
			chatMsg("user", "weather in berlin?"),
			{
				Role: "assistant",
				ToolCalls: []types.ChatToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: types.ChatFunctionCall{
						Name:      "get_weather",
						Arguments: `{"city":"berlin"}`,
					},
				}},
			},
			{Role: "tool", ToolCallID: "call_1", Content: json.RawMessage(`"12C, cloudy"`)},
		},
	}
	out, err := ChatRequestToMessages(req)
	if err != nil {
		t.Fatal(err)
	}

	if len(out.Tools) != 1 || out.Tools[0].Name != "get_weather" {
		t.Fatalf("tools: %+v", out.Tools)
	}
	choice, _ := out.ToolChoice.(map[string]any)
	if choice["type"] != "any" {
		t.Errorf("tool_choice: %+v", out.ToolChoice)
	}

	if len(out.Messages) != 3 {
		t.Fatalf("messages: got %d: %+v", len(out.Messages), out.Messages)
	}

	blocks, err := out.Messages[1].ParseContent()
	if err != nil {
		t.Fatal(err)
	}
	if blocks[0].Type != types.BlockToolUse || blocks[0].ID != "call_1" {
		t.Errorf("tool_use block: %+v", blocks[0])
	}

	// Tool results land on a user message.
	if out.Messages[2].Role != "user" {
		t.Errorf("tool result role: %q", out.Messages[2].Role)
	}
	resultBlocks, err := out.Messages[2].ParseContent()
	if err != nil {
		t.Fatal(err)
	}
	if resultBlocks[0].Type != types.BlockToolResult || resultBlocks[0].ToolUseID != "call_1" {
		t.Errorf("tool_result block: %+v", resultBlocks[0])
	}
}

func TestChatRequestToolChoiceNone(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Tools: []types.ChatTool{{
			Type:     "function",
			Function: types.ChatToolFunction{Name: "f"},
		}},
		ToolChoice: "none",
		Messages:   []types.ChatMessage{chatMsg("user", "hi")},
	}
	out, err := ChatRequestToMessages(req)
	if err != nil {
		t.Fatal(err)
	}
	if out.Tools != nil || out.ToolChoice != nil {
		t.Errorf("tool_choice none must drop tools: %+v %+v", out.Tools, out.ToolChoice)
	}
}

func TestChatRequestStopSequences(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Stop:     []any{"END", "STOP"},
		Messages: []types.ChatMessage{chatMsg("user", "hi")},
	}
	out, err := ChatRequestToMessages(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.StopSequences) != 2 || out.StopSequences[0] != "END" {
		t.Errorf("stop: %+v", out.StopSequences)
	}
}

func TestChatRequestContentParts(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []types.ChatMessage{{
			Role:    "user",
			Content: json.RawMessage(`[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]`),
		}},
	}
	out, err := ChatRequestToMessages(req)
	if err != nil {
		t.Fatal(err)
	}
	blocks, err := out.Messages[0].ParseContent()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 || blocks[1].Text != "part two" {
		t.Errorf("blocks: %+v", blocks)
	}
}

func TestChatRequestUnsupportedRole(t *testing.T) {
	req := &types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.ChatMessage{chatMsg("narrator", "meanwhile")},
	}
	if _, err := ChatRequestToMessages(req); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
