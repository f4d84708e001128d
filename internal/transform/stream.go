package transform

import (
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/llmux/llmux/internal/codec"
	"github.com/llmux/llmux/internal/stream"
	"github.com/llmux/llmux/internal/types"
)

// ChatStreamTranslator turns a Messages API SSE stream into OpenAI Chat
// Completions chunks.
type ChatStreamTranslator struct {
	w            http.ResponseWriter
	model        string
	id           string
	created      int64
	includeUsage bool

	sentRole   bool
	finish     string
	usage      types.ChatUsage
	blockTypes map[int]string
	toolIndex  map[int]int
	toolCount  int
}

// NewChatStreamTranslator creates a translator for one response stream.
func NewChatStreamTranslator(w http.ResponseWriter, model, id string, created int64, includeUsage bool) *ChatStreamTranslator {
	return &ChatStreamTranslator{
		w:            w,
		model:        model,
		id:           id,
		created:      created,
		includeUsage: includeUsage,
		finish:       "stop",
		blockTypes:   make(map[int]string),
		toolIndex:    make(map[int]int),
	}
}

// Translate consumes events from r until the stream ends, writing translated
// chunks as it goes. Every event is also fed to collector when non-nil, so
// the caller can record thinking blocks afterwards.
func (t *ChatStreamTranslator) Translate(r *stream.Reader, collector *stream.Collector) {
	for {
		evt, err := r.Next()
		if err != nil {
			break
		}
		if collector != nil {
			collector.Observe(evt)
		}
		t.handle(evt)
		if evt.Name == "message_stop" {
			break
		}
	}
	t.finishStream()
}

func (t *ChatStreamTranslator) handle(evt *stream.Event) {
	switch evt.Name {
	case "message_start":
		t.usage.PromptTokens = int(gjson.GetBytes(evt.Raw, "message.usage.input_tokens").Int())
		t.writeDelta(types.ChatDelta{Role: "assistant"}, nil)
		t.sentRole = true

	case "content_block_start":
		idx := int(gjson.GetBytes(evt.Raw, "index").Int())
		blockType := gjson.GetBytes(evt.Raw, "content_block.type").String()
		t.blockTypes[idx] = blockType
		if blockType == types.BlockToolUse {
			callIdx := t.toolCount
			t.toolCount++
			t.toolIndex[idx] = callIdx
			t.writeToolCallDelta(callIdx, types.ChatToolCall{
				ID:       gjson.GetBytes(evt.Raw, "content_block.id").String(),
				Type:     "function",
				Function: types.ChatFunctionCall{Name: gjson.GetBytes(evt.Raw, "content_block.name").String()},
			})
		}

	case "content_block_delta":
		idx := int(gjson.GetBytes(evt.Raw, "index").Int())
		delta := gjson.GetBytes(evt.Raw, "delta")
		switch delta.Get("type").String() {
		case "text_delta":
			t.writeDelta(types.ChatDelta{Content: delta.Get("text").String()}, nil)
		case "thinking_delta":
			t.writeDelta(types.ChatDelta{ReasoningContent: delta.Get("thinking").String()}, nil)
		case "input_json_delta":
			if callIdx, ok := t.toolIndex[idx]; ok {
				t.writeToolCallDelta(callIdx, types.ChatToolCall{
					Function: types.ChatFunctionCall{Arguments: delta.Get("partial_json").String()},
				})
			}
		}

	case "message_delta":
		if sr := gjson.GetBytes(evt.Raw, "delta.stop_reason"); sr.Exists() {
			t.finish = FinishReason(sr.String())
		}
		if out := gjson.GetBytes(evt.Raw, "usage.output_tokens"); out.Exists() {
			t.usage.CompletionTokens = int(out.Int())
		}

	case "error":
		msg := gjson.GetBytes(evt.Raw, "error.message").String()
		if msg == "" {
			msg = "upstream stream error"
		}
		codec.WriteSSEData(t.w, types.ErrorResponse{Error: types.ErrorDetail{Message: msg, Type: "api_error"}})
	}
}

func (t *ChatStreamTranslator) finishStream() {
	finish := t.finish
	t.writeChunk(types.ChunkChoice{Index: 0, Delta: types.ChatDelta{}, FinishReason: &finish}, nil)

	if t.includeUsage {
		t.usage.TotalTokens = t.usage.PromptTokens + t.usage.CompletionTokens
		usage := t.usage
		codec.WriteSSEData(t.w, types.ChatCompletionChunk{
			ID:      t.id,
			Object:  "chat.completion.chunk",
			Created: t.created,
			Model:   t.model,
			Choices: []types.ChunkChoice{},
			Usage:   &usage,
		})
	}
	codec.WriteSSEDone(t.w)
}

func (t *ChatStreamTranslator) writeDelta(delta types.ChatDelta, finish *string) {
	t.writeChunk(types.ChunkChoice{Index: 0, Delta: delta, FinishReason: finish}, nil)
}

func (t *ChatStreamTranslator) writeToolCallDelta(callIdx int, call types.ChatToolCall) {
	// The OpenAI chunk format indexes tool calls inside the delta.
	type indexedCall struct {
		Index    int                    `json:"index"`
		ID       string                 `json:"id,omitempty"`
		Type     string                 `json:"type,omitempty"`
		Function types.ChatFunctionCall `json:"function"`
	}
	chunk := map[string]any{
		"id":      t.id,
		"object":  "chat.completion.chunk",
		"created": t.created,
		"model":   t.model,
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]any{
				"tool_calls": []indexedCall{{
					Index:    callIdx,
					ID:       call.ID,
					Type:     call.Type,
					Function: call.Function,
				}},
			},
			"finish_reason": nil,
		}},
	}
	codec.WriteSSEData(t.w, chunk)
}

func (t *ChatStreamTranslator) writeChunk(choice types.ChunkChoice, usage *types.ChatUsage) {
	codec.WriteSSEData(t.w, types.ChatCompletionChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []types.ChunkChoice{choice},
		Usage:   usage,
	})
}
