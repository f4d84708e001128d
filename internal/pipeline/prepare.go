// Package pipeline assembles provider-ready Messages API requests from
// inbound OpenAI or native Anthropic requests: keyword detection and
// stripping, thinking reconciliation, output-length floors, thinking-block
// backfill, and the final structural passes.
package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/llmux/llmux/internal/models"
	"github.com/llmux/llmux/internal/sanitize"
	"github.com/llmux/llmux/internal/state"
	"github.com/llmux/llmux/internal/thinking"
	"github.com/llmux/llmux/internal/transform"
	"github.com/llmux/llmux/internal/types"
)

// minResponseTokens is the response-room floor added on top of the thinking
// budget when sizing max_tokens.
const minResponseTokens = 1024

// Preparer builds provider requests. It is stateless across requests; all
// cross-request state lives in the artifact store.
type Preparer struct {
	Store            *state.Store
	Registry         *models.Registry
	DefaultMaxTokens int
}

// Prepared is the outcome of request preparation.
type Prepared struct {
	// Request is the typed provider request after all adjustments.
	Request *types.MessagesRequest
	// Body is the finished wire body, including the byte-level passes.
	Body []byte
	// RequestedModel is the model name the client asked for.
	RequestedModel string
	// RecordMessages is the message list to key Record calls with: after
	// keyword stripping, before backfill, matching what the next turn's
	// Backfill will fingerprint.
	RecordMessages []types.Message
	// IncludeUsage mirrors OpenAI stream_options.include_usage.
	IncludeUsage bool
	// Directive is the keyword-resolved thinking directive, if any.
	Directive *thinking.Directive
}

// Error is a client-facing preparation failure.
type Error struct {
	StatusCode int
	Message    string
}

// Prepare is the single entry point: it converts, scans, reconciles,
// backfills, and finalizes one inbound request body. Malformed message
// internals pass through opaquely; only undecodable envelopes fail.
func (p *Preparer) Prepare(raw []byte, native bool, requestID string) (*Prepared, *Error) {
	out := &Prepared{}

	var req *types.MessagesRequest
	if native {
		req = &types.MessagesRequest{}
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, &Error{StatusCode: http.StatusBadRequest, Message: "Invalid JSON body"}
		}
	} else {
		var chatReq types.ChatCompletionRequest
		if err := json.Unmarshal(raw, &chatReq); err != nil {
			return nil, &Error{StatusCode: http.StatusBadRequest, Message: "Invalid JSON body"}
		}
		converted, err := transform.ChatRequestToMessages(&chatReq)
		if err != nil {
			return nil, &Error{StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
		req = converted
		out.IncludeUsage = chatReq.StreamOptions != nil && chatReq.StreamOptions.IncludeUsage
	}

	out.RequestedModel = req.Model
	upstreamModel, ok := p.Registry.Resolve(req.Model)
	if !ok {
		return nil, &Error{
			StatusCode: http.StatusBadRequest,
			Message:    "model " + req.Model + " is not available; known models: " + p.Registry.Hint(),
		}
	}
	req.Model = upstreamModel

	toolContinuation := hasToolUseContinuation(req.Messages)

	stripped, directive := thinking.Process(req.Messages)
	if directive != nil {
		req.Messages = stripped
		out.Directive = directive
		slog.Debug("pipeline.keyword",
			"request_id", requestID,
			"level", directive.Level,
			"budget", directive.BudgetTokens,
			"tool_continuation", toolContinuation,
		)
	}

	req.Thinking = resolveThinking(req.Thinking, directive, toolContinuation)

	if req.Thinking.Enabled() {
		if required := req.Thinking.BudgetTokens + minResponseTokens; req.MaxTokens < required {
			slog.Debug("pipeline.max_tokens.raised",
				"request_id", requestID,
				"from", req.MaxTokens,
				"to", required,
			)
			req.MaxTokens = required
		}
		out.RecordMessages = req.Messages
		req.Messages = p.Store.Backfill(req.Messages)
	} else {
		out.RecordMessages = req.Messages
	}

	defaultMax := p.defaultMaxTokens()
	if ceiling := p.Registry.MaxOutputTokens(req.Model, defaultMax); ceiling < defaultMax {
		defaultMax = ceiling
	}
	sanitize.Request(req, defaultMax)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{StatusCode: http.StatusInternalServerError, Message: "failed to encode provider request"}
	}
	body = sanitize.InjectSystemPrompt(body)
	body = sanitize.AddPromptCaching(body)

	out.Request = req
	out.Body = body
	return out, nil
}

func (p *Preparer) defaultMaxTokens() int {
	if p.DefaultMaxTokens > 0 {
		return p.DefaultMaxTokens
	}
	return 8192
}

// resolveThinking reconciles an explicit thinking config with a
// keyword-resolved directive. The precedence rules, in order:
//
//	directive  explicit  tool-cont  result
//	nil        any       any        explicit unchanged
//	set        any       yes        explicit unchanged (directive discarded)
//	set        nil       no         directive becomes the config
//	set        enabled   no         explicit, budget raised only if the
//	                                directive's is strictly larger
//	set        other     no         explicit unchanged
func resolveThinking(explicit *types.ThinkingConfig, directive *thinking.Directive, toolContinuation bool) *types.ThinkingConfig {
	switch {
	case directive == nil:
		return explicit
	case toolContinuation:
		return explicit
	case explicit == nil:
		return directive.Config()
	case explicit.Enabled() && directive.BudgetTokens > explicit.BudgetTokens:
		return &types.ThinkingConfig{Type: explicit.Type, BudgetTokens: directive.BudgetTokens}
	default:
		return explicit
	}
}

// hasToolUseContinuation reports whether the most recent assistant message
// contains a tool_use block, which marks an in-progress tool-call sequence
// whose thinking parameters must not change.
func hasToolUseContinuation(messages []types.Message) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "assistant" {
			continue
		}
		blocks, err := messages[i].ParseContent()
		if err != nil {
			return false
		}
		for _, b := range blocks {
			if b.Type == types.BlockToolUse {
				return true
			}
		}
		return false
	}
	return false
}
