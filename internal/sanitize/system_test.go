package sanitize

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestInjectSystemPromptAbsent(t *testing.T) {
	out := InjectSystemPrompt([]byte(`{"model":"m","messages":[]}`))
	system := gjson.GetBytes(out, "system")
	if !system.IsArray() || len(system.Array()) != 1 {
		t.Fatalf("system: %s", out)
	}
	if system.Array()[0].Get("text").String() != ClaudeCodePrompt {
		t.Errorf("preamble: %s", out)
	}
}

func TestInjectSystemPromptString(t *testing.T) {
	out := InjectSystemPrompt([]byte(`{"system":"you are a pirate"}`))
	blocks := gjson.GetBytes(out, "system").Array()
	if len(blocks) != 2 {
		t.Fatalf("system: %s", out)
	}
	if blocks[0].Get("text").String() != ClaudeCodePrompt {
		t.Errorf("preamble not first: %s", out)
	}
	if blocks[1].Get("text").String() != "you are a pirate" {
		t.Errorf("client system lost: %s", out)
	}
}

func TestInjectSystemPromptArray(t *testing.T) {
	out := InjectSystemPrompt([]byte(`{"system":[{"type":"text","text":"custom"}]}`))
	blocks := gjson.GetBytes(out, "system").Array()
	if len(blocks) != 2 || blocks[0].Get("text").String() != ClaudeCodePrompt {
		t.Fatalf("system: %s", out)
	}
}

func TestInjectSystemPromptIdempotent(t *testing.T) {
	once := InjectSystemPrompt([]byte(`{"system":"extra"}`))
	twice := InjectSystemPrompt(once)
	if string(once) != string(twice) {
		t.Errorf("not idempotent:\n%s\n%s", once, twice)
	}
}
