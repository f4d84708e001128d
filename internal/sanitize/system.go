package sanitize

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llmux/llmux/internal/types"
)

// ClaudeCodePrompt is the fixed identification preamble the provider expects
// as the first system block.
const ClaudeCodePrompt = "You are Claude Code, Anthropic's official CLI for Claude."

// InjectSystemPrompt prepends the Claude Code preamble to the marshaled
// request body's system field, preserving whatever system content the client
// supplied after it. The body is returned unchanged if the preamble is
// already in place or the rewrite fails.
func InjectSystemPrompt(body []byte) []byte {
	preamble, _ := json.Marshal(types.ContentBlock{Type: types.BlockText, Text: ClaudeCodePrompt})

	system := gjson.GetBytes(body, "system")
	switch {
	case !system.Exists():
		out, err := sjson.SetRawBytes(body, "system", append(append([]byte{'['}, preamble...), ']'))
		if err != nil {
			return body
		}
		return out

	case system.Type == gjson.String:
		if system.String() == ClaudeCodePrompt {
			return body
		}
		existing, _ := json.Marshal(types.ContentBlock{Type: types.BlockText, Text: system.String()})
		merged := join(preamble, existing)
		out, err := sjson.SetRawBytes(body, "system", merged)
		if err != nil {
			return body
		}
		return out

	case system.IsArray():
		blocks := system.Array()
		if len(blocks) > 0 && blocks[0].Get("text").String() == ClaudeCodePrompt {
			return body
		}
		parts := make([][]byte, 0, len(blocks)+1)
		parts = append(parts, preamble)
		for _, b := range blocks {
			parts = append(parts, []byte(b.Raw))
		}
		out, err := sjson.SetRawBytes(body, "system", join(parts...))
		if err != nil {
			return body
		}
		return out
	}
	return body
}

// join builds a JSON array from already-encoded elements.
func join(elems ...[]byte) []byte {
	out := []byte{'['}
	for i, e := range elems {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, e...)
	}
	return append(out, ']')
}
