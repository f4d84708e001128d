package stream

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/llmux/llmux/internal/types"
)

// Collector reconstructs content blocks from Messages SSE events. It is fed
// every event of a stream and afterwards yields the completed blocks, which
// the record path uses to capture thinking artifacts from streamed responses.
type Collector struct {
	open   map[int]*partialBlock
	blocks []indexedBlock
}

type partialBlock struct {
	blockType string
	text      string
	thinking  string
	signature string
	raw       json.RawMessage // complete blocks that arrive whole, e.g. redacted_thinking
	inputJSON string
	start     json.RawMessage
}

type indexedBlock struct {
	index int
	raw   json.RawMessage
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{open: make(map[int]*partialBlock)}
}

// Observe feeds one SSE event into the collector.
func (c *Collector) Observe(evt *Event) {
	if evt == nil {
		return
	}
	switch evt.Name {
	case "content_block_start":
		idx := int(gjson.GetBytes(evt.Raw, "index").Int())
		blockRaw := gjson.GetBytes(evt.Raw, "content_block")
		if !blockRaw.Exists() {
			return
		}
		p := &partialBlock{
			blockType: blockRaw.Get("type").String(),
			start:     json.RawMessage(blockRaw.Raw),
		}
		if p.blockType == types.BlockRedactedThinking {
			p.raw = json.RawMessage(blockRaw.Raw)
		}
		c.open[idx] = p

	case "content_block_delta":
		idx := int(gjson.GetBytes(evt.Raw, "index").Int())
		p, ok := c.open[idx]
		if !ok {
			return
		}
		delta := gjson.GetBytes(evt.Raw, "delta")
		switch delta.Get("type").String() {
		case "text_delta":
			p.text += delta.Get("text").String()
		case "thinking_delta":
			p.thinking += delta.Get("thinking").String()
		case "signature_delta":
			p.signature += delta.Get("signature").String()
		case "input_json_delta":
			p.inputJSON += delta.Get("partial_json").String()
		}

	case "content_block_stop":
		idx := int(gjson.GetBytes(evt.Raw, "index").Int())
		p, ok := c.open[idx]
		if !ok {
			return
		}
		delete(c.open, idx)
		if raw := p.finish(); raw != nil {
			c.blocks = append(c.blocks, indexedBlock{index: idx, raw: raw})
		}
	}
}

// Blocks returns the completed content blocks ordered by block index.
func (c *Collector) Blocks() []json.RawMessage {
	sort.SliceStable(c.blocks, func(i, j int) bool {
		return c.blocks[i].index < c.blocks[j].index
	})
	out := make([]json.RawMessage, 0, len(c.blocks))
	for _, b := range c.blocks {
		out = append(out, b.raw)
	}
	return out
}

// finish assembles the final block JSON from the accumulated deltas.
func (p *partialBlock) finish() json.RawMessage {
	switch p.blockType {
	case types.BlockThinking:
		b, err := json.Marshal(map[string]string{
			"type":      types.BlockThinking,
			"thinking":  p.thinking,
			"signature": p.signature,
		})
		if err != nil {
			return nil
		}
		return b
	case types.BlockRedactedThinking:
		return p.raw
	case types.BlockText:
		b, err := json.Marshal(types.ContentBlock{Type: types.BlockText, Text: p.text})
		if err != nil {
			return nil
		}
		return b
	default:
		// Tool use and anything else keeps its start shape; the record path
		// only needs thinking blocks out of this.
		return p.start
	}
}
