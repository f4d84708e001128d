package sanitize

import (
	"testing"

	"github.com/llmux/llmux/internal/types"
)

func TestRequestDefaultMaxTokens(t *testing.T) {
	req := &types.MessagesRequest{}
	Request(req, 8192)
	if req.MaxTokens != 8192 {
		t.Errorf("max_tokens: got %d", req.MaxTokens)
	}

	req = &types.MessagesRequest{MaxTokens: 300}
	Request(req, 8192)
	if req.MaxTokens != 300 {
		t.Errorf("explicit max_tokens changed: %d", req.MaxTokens)
	}
}

func TestRequestThinkingConstraints(t *testing.T) {
	req := &types.MessagesRequest{
		MaxTokens:   5000,
		Temperature: types.Float64Ptr(0.3),
		TopP:        types.Float64Ptr(0.95),
		TopK:        intPtr(40),
		Thinking:    &types.ThinkingConfig{Type: "enabled", BudgetTokens: 512},
	}
	Request(req, 8192)

	if req.Thinking.BudgetTokens != 1024 {
		t.Errorf("budget below floor kept: %d", req.Thinking.BudgetTokens)
	}
	if req.Temperature == nil || *req.Temperature != 1 {
		t.Errorf("temperature: %v", req.Temperature)
	}
	if req.TopP != nil || req.TopK != nil {
		t.Error("top_p/top_k must be removed with thinking")
	}
}

func TestRequestSamplingKeptWithoutThinking(t *testing.T) {
	req := &types.MessagesRequest{
		MaxTokens:   100,
		Temperature: types.Float64Ptr(0.3),
		TopP:        types.Float64Ptr(0.95),
	}
	Request(req, 8192)
	if *req.Temperature != 0.3 || *req.TopP != 0.95 {
		t.Errorf("sampling params changed: %v %v", req.Temperature, req.TopP)
	}
}

func TestRequestDisabledThinkingDropped(t *testing.T) {
	req := &types.MessagesRequest{
		MaxTokens: 100,
		Thinking:  &types.ThinkingConfig{Type: "disabled"},
	}
	Request(req, 8192)
	if req.Thinking != nil {
		t.Errorf("disabled config kept: %+v", req.Thinking)
	}
}

func TestRequestEmptySlicesDropped(t *testing.T) {
	req := &types.MessagesRequest{
		MaxTokens:     100,
		Tools:         []types.Tool{},
		StopSequences: []string{},
		ToolChoice:    map[string]any{"type": "auto"},
	}
	Request(req, 8192)
	if req.Tools != nil || req.ToolChoice != nil || req.StopSequences != nil {
		t.Errorf("empty slices kept: %+v", req)
	}
}

func intPtr(v int) *int { return &v }
