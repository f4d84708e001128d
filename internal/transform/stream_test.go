package transform

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/llmux/llmux/internal/stream"
)

func sse(lines ...string) *stream.Reader {
	return stream.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func chunks(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(out) == 0 {
		t.Fatalf("no data lines in %q", body)
	}
	return out
}

func TestTranslateTextStream(t *testing.T) {
	r := sse(
		`event: message_start`,
		`data: {"type":"message_start","message":{"usage":{"input_tokens":9}}}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
		``,
		`event: content_block_stop`,
		`data: {"type":"content_block_stop","index":0}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
	)

	rec := httptest.NewRecorder()
	tr := NewChatStreamTranslator(rec, "gpt-4o", "chatcmpl-1", 1700000000, true)
	tr.Translate(r, nil)

	data := chunks(t, rec.Body.String())
	if data[len(data)-1] != "[DONE]" {
		t.Fatalf("last chunk: %q", data[len(data)-1])
	}

	first := data[0]
	if gjson.Get(first, "choices.0.delta.role").String() != "assistant" {
		t.Errorf("first chunk must carry the role: %s", first)
	}

	var text strings.Builder
	var finish string
	for _, d := range data {
		if d == "[DONE]" {
			continue
		}
		text.WriteString(gjson.Get(d, "choices.0.delta.content").String())
		if f := gjson.Get(d, "choices.0.finish_reason"); f.Exists() && f.String() != "" {
			finish = f.String()
		}
	}
	if text.String() != "Hello" {
		t.Errorf("assembled text: %q", text.String())
	}
	if finish != "stop" {
		t.Errorf("finish: %q", finish)
	}

	// include_usage adds a final usage-only chunk before [DONE].
	usageChunk := data[len(data)-2]
	if gjson.Get(usageChunk, "usage.prompt_tokens").Int() != 9 ||
		gjson.Get(usageChunk, "usage.completion_tokens").Int() != 2 {
		t.Errorf("usage chunk: %s", usageChunk)
	}
}

func TestTranslateThinkingStream(t *testing.T) {
	r := sse(
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"pondering"}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
	)

	rec := httptest.NewRecorder()
	collector := stream.NewCollector()
	NewChatStreamTranslator(rec, "m", "id", 0, false).Translate(r, collector)

	if !strings.Contains(rec.Body.String(), `"reasoning_content":"pondering"`) {
		t.Errorf("reasoning delta missing: %s", rec.Body.String())
	}
}

func TestTranslateToolCallStream(t *testing.T) {
	r := sse(
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_9","name":"lookup"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"x\"}"}}`,
		``,
		`event: content_block_stop`,
		`data: {"type":"content_block_stop","index":0}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
	)

	rec := httptest.NewRecorder()
	NewChatStreamTranslator(rec, "m", "id", 0, false).Translate(r, nil)

	data := chunks(t, rec.Body.String())
	var name, args string
	var finish string
	for _, d := range data {
		if d == "[DONE]" {
			continue
		}
		calls := gjson.Get(d, "choices.0.delta.tool_calls")
		if calls.Exists() {
			first := calls.Array()[0]
			if n := first.Get("function.name").String(); n != "" {
				name = n
			}
			args += first.Get("function.arguments").String()
		}
		if f := gjson.Get(d, "choices.0.finish_reason"); f.Exists() && f.String() != "" {
			finish = f.String()
		}
	}
	if name != "lookup" {
		t.Errorf("tool name: %q", name)
	}
	if args != `{"q":"x"}` {
		t.Errorf("arguments: %q", args)
	}
	if finish != "tool_calls" {
		t.Errorf("finish: %q", finish)
	}
}

func TestTranslateUpstreamErrorEvent(t *testing.T) {
	r := sse(
		`event: error`,
		`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
	)
	rec := httptest.NewRecorder()
	NewChatStreamTranslator(rec, "m", "id", 0, false).Translate(r, nil)
	if !strings.Contains(rec.Body.String(), "Overloaded") {
		t.Errorf("error not surfaced: %s", rec.Body.String())
	}
}
