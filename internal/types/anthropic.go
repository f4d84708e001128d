package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content block types used by the Messages API.
const (
	BlockText             = "text"
	BlockThinking         = "thinking"
	BlockRedactedThinking = "redacted_thinking"
	BlockToolUse          = "tool_use"
	BlockToolResult       = "tool_result"
)

// IsThinkingBlockType reports whether t is a reasoning-carrying block type.
func IsThinkingBlockType(t string) bool {
	return t == BlockThinking || t == BlockRedactedThinking
}

// MessagesRequest is the Anthropic Messages API request body. Content and
// system are kept as raw JSON so that block shapes this gateway does not
// understand survive the round trip untouched.
type MessagesRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    any             `json:"tool_choice,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// ThinkingConfig enables extended thinking on a Messages request.
type ThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Enabled reports whether the config actually requests thinking.
func (t *ThinkingConfig) Enabled() bool {
	return t != nil && t.Type == "enabled"
}

// Message is a single conversation turn. Content may be a JSON string or an
// array of content blocks; it stays raw until something needs to look inside.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Tool is a Messages API tool definition.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// ContentBlock is a decoded content block. Only the fields for the block's
// type are populated; everything else is zero.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// Extended thinking fields.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`

	// Tool use / tool result fields.
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     any             `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ParseContent parses message content that may be a string or array of blocks.
// String content is surfaced as a single text block.
func (m *Message) ParseContent() ([]ContentBlock, error) {
	if len(m.Content) == 0 {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return []ContentBlock{{Type: BlockText, Text: s}}, nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil, fmt.Errorf("invalid message content for role %q", m.Role)
	}
	return blocks, nil
}

// TextContent builds raw message content holding a plain string.
func TextContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// BlocksContent builds raw message content from decoded blocks.
func BlocksContent(blocks []ContentBlock) json.RawMessage {
	b, _ := json.Marshal(blocks)
	return b
}

// RawBlocksContent builds raw message content from already-encoded blocks.
func RawBlocksContent(blocks []json.RawMessage) json.RawMessage {
	b, _ := json.Marshal(blocks)
	return b
}

// MessageResponse is the non-streaming Messages API response. Content blocks
// stay raw so thinking signatures and redacted payloads are preserved.
type MessageResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Model        string            `json:"model"`
	Content      []json.RawMessage `json:"content"`
	StopReason   *string           `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence"`
	Usage        Usage             `json:"usage"`
}

// Usage holds Messages API token usage.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicErrorResponse is the error envelope for Anthropic-dialect routes.
type AnthropicErrorResponse struct {
	Type  string             `json:"type"`
	Error AnthropicErrorBody `json:"error"`
}

// AnthropicErrorBody is the nested error payload.
type AnthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicModelList is the response for GET /v1/models in Anthropic mode.
type AnthropicModelList struct {
	Data    []AnthropicModel `json:"data"`
	HasMore bool             `json:"has_more"`
}

// AnthropicModel is a single model entry.
type AnthropicModel struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name,omitempty"`
}

// ParseSystemText parses "system" which may be a string or array of text blocks.
func ParseSystemText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("invalid system field")
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "" || b.Type == BlockText {
			txt := strings.TrimSpace(b.Text)
			if txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
