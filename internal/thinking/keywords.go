// Package thinking resolves extended-thinking keywords embedded in user
// messages into a thinking budget, and strips them from the visible text.
package thinking

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llmux/llmux/internal/types"
)

// Directive is the resolved thinking request derived from keywords.
type Directive struct {
	Level        string
	BudgetTokens int
}

// Config converts the directive into a Messages API thinking config.
func (d *Directive) Config() *types.ThinkingConfig {
	if d == nil {
		return nil
	}
	return &types.ThinkingConfig{Type: "enabled", BudgetTokens: d.BudgetTokens}
}

// budgetTable maps keywords to thinking budgets, highest first. The order is
// also the tie-break order when two keywords carry the same budget.
var budgetTable = []struct {
	keyword string
	tokens  int
}{
	{"ultrathink", 32000},
	{"think harder", 24000},
	{"think hard", 16000},
	{"think", 10000},
}

// keywordPattern matches thinking keywords on word boundaries. Longer phrases
// come first so "think harder" is not consumed as a bare "think".
var keywordPattern = regexp.MustCompile(`(?i)\b(ultrathink|think\s+harder|think\s+hard|think)\b`)

// collapseSpace collapses runs of whitespace into single spaces.
var collapseSpace = regexp.MustCompile(`\s+`)

func normalizeKeyword(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func budgetFor(keyword string) int {
	for _, e := range budgetTable {
		if e.keyword == keyword {
			return e.tokens
		}
	}
	return 0
}

// Detect scans user messages for thinking keywords and returns the directive
// for the highest-budget keyword found, or nil when there are no matches.
// Only plain-string content and text blocks are scanned.
func Detect(messages []types.Message) *Directive {
	var best *Directive
	consider := func(text string) {
		for _, m := range keywordPattern.FindAllString(text, -1) {
			kw := normalizeKeyword(m)
			budget := budgetFor(kw)
			if budget == 0 {
				continue
			}
			if best == nil || budget > best.BudgetTokens {
				best = &Directive{Level: kw, BudgetTokens: budget}
			}
		}
	}

	for _, msg := range messages {
		if msg.Role != "user" || len(msg.Content) == 0 {
			continue
		}
		if s, ok := stringContent(msg.Content); ok {
			consider(s)
			continue
		}
		forEachTextBlock(msg.Content, func(_ int, text string) {
			consider(text)
		})
	}
	return best
}

// Strip removes every keyword occurrence from user text and collapses the
// whitespace left behind. It returns a new message slice whose content is
// independent of the input; messages of other roles and non-text blocks pass
// through unchanged.
func Strip(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, msg := range messages {
		out[i] = types.Message{Role: msg.Role, Content: cloneRaw(msg.Content)}
		if msg.Role != "user" || len(msg.Content) == 0 {
			continue
		}

		if s, ok := stringContent(msg.Content); ok {
			if keywordPattern.MatchString(s) {
				out[i].Content = types.TextContent(stripText(s))
			}
			continue
		}

		if !gjson.ParseBytes(msg.Content).IsArray() {
			continue
		}
		blocks := gjson.ParseBytes(msg.Content).Array()
		rebuilt := make([]json.RawMessage, 0, len(blocks))
		changed := false
		for _, b := range blocks {
			raw := json.RawMessage(b.Raw)
			if b.Get("type").String() == types.BlockText {
				text := b.Get("text").String()
				if keywordPattern.MatchString(text) {
					if updated, err := sjson.SetBytes(raw, "text", stripText(text)); err == nil {
						raw = updated
						changed = true
					}
				}
			}
			rebuilt = append(rebuilt, cloneRaw(raw))
		}
		if changed {
			out[i].Content = types.RawBlocksContent(rebuilt)
		}
	}
	return out
}

// Process combines detection and stripping. When no keyword is found the
// input slice is returned as-is with a nil directive.
func Process(messages []types.Message) ([]types.Message, *Directive) {
	d := Detect(messages)
	if d == nil {
		return messages, nil
	}
	return Strip(messages), d
}

func stripText(s string) string {
	stripped := keywordPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(collapseSpace.ReplaceAllString(stripped, " "))
}

func stringContent(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

func forEachTextBlock(raw json.RawMessage, fn func(idx int, text string)) {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return
	}
	for i, b := range parsed.Array() {
		if b.Get("type").String() == types.BlockText {
			fn(i, b.Get("text").String())
		}
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
