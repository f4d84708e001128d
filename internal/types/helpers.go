package types

import (
	"encoding/json"
	"strings"
)

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(f float64) *float64 {
	return &f
}

// ChatMessageText flattens OpenAI message content into plain text. Array-form
// content contributes only its text parts, joined with newlines.
func ChatMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []ChatContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var out []string
	for _, p := range parts {
		if (p.Type == "" || p.Type == "text") && p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return strings.Join(out, "\n")
}

// ParseToolResultText flattens tool_result.content into plain text.
func ParseToolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var out strings.Builder
		for _, b := range blocks {
			if b.Type == "" || b.Type == BlockText {
				out.WriteString(b.Text)
			}
		}
		return out.String()
	}
	return strings.TrimSpace(string(raw))
}
