package sanitize

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llmux/llmux/internal/types"
)

// maxCacheBreakpoints is the provider's limit on cache_control markers per
// request.
const maxCacheBreakpoints = 4

var ephemeral = []byte(`{"type":"ephemeral"}`)

// AddPromptCaching annotates the marshaled request body with cache_control
// breakpoints: the last system block and the final content block of the last
// user message. Existing markers count against the provider's limit and are
// never duplicated.
func AddPromptCaching(body []byte) []byte {
	budget := maxCacheBreakpoints - CountCacheControls(body)
	if budget <= 0 {
		return body
	}

	if out, ok := annotateSystem(body); ok {
		body = out
		budget--
	}
	if budget <= 0 {
		return body
	}
	if out, ok := annotateLastUserMessage(body); ok {
		body = out
	}
	return body
}

// CountCacheControls counts cache_control markers already present on system
// blocks and message content blocks.
func CountCacheControls(body []byte) int {
	count := 0
	for _, b := range gjson.GetBytes(body, "system").Array() {
		if b.Get("cache_control").Exists() {
			count++
		}
	}
	for _, m := range gjson.GetBytes(body, "messages").Array() {
		for _, b := range m.Get("content").Array() {
			if b.Get("cache_control").Exists() {
				count++
			}
		}
	}
	return count
}

func annotateSystem(body []byte) ([]byte, bool) {
	system := gjson.GetBytes(body, "system")
	if !system.IsArray() {
		return body, false
	}
	blocks := system.Array()
	if len(blocks) == 0 {
		return body, false
	}
	last := len(blocks) - 1
	if blocks[last].Get("cache_control").Exists() {
		return body, false
	}
	out, err := sjson.SetRawBytes(body, fmt.Sprintf("system.%d.cache_control", last), ephemeral)
	if err != nil {
		return body, false
	}
	return out, true
}

func annotateLastUserMessage(body []byte) ([]byte, bool) {
	messages := gjson.GetBytes(body, "messages").Array()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Get("role").String() != "user" {
			continue
		}
		content := messages[i].Get("content")
		if content.Type == gjson.String {
			// String content has nowhere to hang a marker; wrap it first.
			block := fmt.Sprintf(`[{"type":%q,"text":%s,"cache_control":{"type":"ephemeral"}}]`,
				types.BlockText, content.Raw)
			out, err := sjson.SetRawBytes(body, fmt.Sprintf("messages.%d.content", i), []byte(block))
			if err != nil {
				return body, false
			}
			return out, true
		}
		blocks := content.Array()
		if len(blocks) == 0 {
			return body, false
		}
		last := len(blocks) - 1
		if blocks[last].Get("cache_control").Exists() {
			return body, false
		}
		out, err := sjson.SetRawBytes(body, fmt.Sprintf("messages.%d.content.%d.cache_control", i, last), ephemeral)
		if err != nil {
			return body, false
		}
		return out, true
	}
	return body, false
}
