package state

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/llmux/llmux/internal/types"
)

// Store maps conversation fingerprints to the thinking blocks of the most
// recent provider response. It exists because many clients drop thinking
// blocks from the assistant turns they echo back, and the provider rejects
// thinking-enabled requests whose assistant history lost its reasoning
// prefix. Entries live for the process lifetime or until an explicit Clear.
type Store struct {
	mu     sync.RWMutex
	blocks map[string][]json.RawMessage
}

// NewStore creates an empty artifact store.
func NewStore() *Store {
	return &Store{blocks: make(map[string][]json.RawMessage)}
}

// Record captures thinking and redacted_thinking blocks from a provider
// response's content, in original order, and stores them under the
// fingerprint of messages. Existing artifacts for the conversation are
// overwritten. A response without thinking blocks is a no-op.
func (s *Store) Record(messages []types.Message, content []json.RawMessage) {
	var artifacts []json.RawMessage
	for _, block := range content {
		if types.IsThinkingBlockType(gjson.GetBytes(block, "type").String()) {
			artifacts = append(artifacts, cloneRaw(block))
		}
	}
	if len(artifacts) == 0 {
		return
	}

	fp := Fingerprint(messages)

	s.mu.Lock()
	s.blocks[fp] = artifacts
	s.mu.Unlock()

	slog.Debug("state.record", "fingerprint", fp[:8], "blocks", len(artifacts))
}

// Backfill prepends stored thinking blocks to every assistant message that
// does not already begin with one. String content is wrapped into a single
// text block first; empty content becomes just the artifacts. The input is
// never mutated, and a cache miss returns it unchanged.
func (s *Store) Backfill(messages []types.Message) []types.Message {
	fp := Fingerprint(messages)

	s.mu.RLock()
	stored := s.blocks[fp]
	s.mu.RUnlock()

	if len(stored) == 0 {
		slog.Debug("state.backfill.miss", "fingerprint", fp[:8])
		return messages
	}

	out := make([]types.Message, len(messages))
	injected := 0
	for i, msg := range messages {
		if msg.Role != "assistant" || hasThinkingPrefix(msg.Content) {
			out[i] = msg
			continue
		}
		out[i] = types.Message{
			Role:    msg.Role,
			Content: prependArtifacts(stored, msg.Content),
		}
		injected++
	}

	if injected > 0 {
		slog.Debug("state.backfill", "fingerprint", fp[:8], "messages", injected, "blocks", len(stored))
	}
	return out
}

// Clear removes the artifacts stored for one fingerprint.
func (s *Store) Clear(fingerprint string) {
	s.mu.Lock()
	delete(s.blocks, fingerprint)
	s.mu.Unlock()
}

// ClearAll removes every stored artifact set.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.blocks = make(map[string][]json.RawMessage)
	s.mu.Unlock()
}

// Len returns the number of stored conversations (for tests).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// hasThinkingPrefix reports whether content is block-structured and starts
// with a thinking or redacted_thinking block.
func hasThinkingPrefix(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return false
	}
	blocks := parsed.Array()
	if len(blocks) == 0 {
		return false
	}
	return types.IsThinkingBlockType(blocks[0].Get("type").String())
}

// prependArtifacts builds new block-structured content with the stored
// artifacts first and the original content after.
func prependArtifacts(artifacts []json.RawMessage, raw json.RawMessage) json.RawMessage {
	merged := make([]json.RawMessage, 0, len(artifacts)+4)
	for _, a := range artifacts {
		merged = append(merged, cloneRaw(a))
	}

	if len(raw) > 0 {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				wrapped, _ := json.Marshal(types.ContentBlock{Type: types.BlockText, Text: s})
				merged = append(merged, wrapped)
			}
		} else if parsed := gjson.ParseBytes(raw); parsed.IsArray() {
			for _, b := range parsed.Array() {
				merged = append(merged, cloneRaw(json.RawMessage(b.Raw)))
			}
		}
	}

	return types.RawBlocksContent(merged)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
