// Package sanitize applies the provider's structural constraints to a
// prepared request, then runs the byte-level finishing passes (system
// preamble injection and prompt-cache annotation) on the marshaled body.
package sanitize

import (
	"github.com/llmux/llmux/internal/types"
)

// minThinkingBudget is the smallest budget_tokens the provider accepts.
const minThinkingBudget = 1024

// Request enforces Messages API constraints on the typed request. With
// thinking enabled the provider requires temperature 1 and rejects top_p and
// top_k alongside it.
func Request(req *types.MessagesRequest, defaultMaxTokens int) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	if req.Thinking.Enabled() {
		if req.Thinking.BudgetTokens < minThinkingBudget {
			req.Thinking.BudgetTokens = minThinkingBudget
		}
		req.Temperature = types.Float64Ptr(1)
		req.TopP = nil
		req.TopK = nil
	} else if req.Thinking != nil && req.Thinking.Type == "disabled" {
		req.Thinking = nil
	}

	if len(req.Tools) == 0 {
		req.Tools = nil
		req.ToolChoice = nil
	}
	if len(req.StopSequences) == 0 {
		req.StopSequences = nil
	}
}
