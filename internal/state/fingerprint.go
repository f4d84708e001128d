// Package state keeps thinking blocks from provider responses so they can be
// restored into later turns of the same conversation.
package state

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmux/llmux/internal/types"
)

// fingerprintTurns is how many leading messages identify a conversation.
const fingerprintTurns = 3

// previewLen bounds the text preview taken from each identifying message.
const previewLen = 50

// Fingerprint derives a stable conversation identity from the leading
// messages. Conversations sharing the same opening turns map to the same
// fingerprint; the digest is a correlation heuristic, not a security boundary.
func Fingerprint(messages []types.Message) string {
	n := len(messages)
	if n > fingerprintTurns {
		n = fingerprintTurns
	}

	parts := make([]string, 0, n)
	for _, msg := range messages[:n] {
		parts = append(parts, msg.Role+":"+contentPreview(msg.Content))
	}

	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func contentPreview(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return truncate(s, previewLen)
	}

	parsed := gjson.ParseBytes(raw)
	if parsed.IsArray() {
		blocks := parsed.Array()
		if len(blocks) == 0 {
			return ""
		}
		first := blocks[0]
		if first.IsObject() {
			return first.Get("type").String()
		}
		return truncate(first.Raw, previewLen)
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
