package limits

import (
	"net/http"
	"testing"
	"time"
)

func TestParseHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-limit", "50")
	h.Set("anthropic-ratelimit-requests-remaining", "49")
	h.Set("anthropic-ratelimit-requests-reset", "2026-08-30T12:00:00Z")
	h.Set("anthropic-ratelimit-input-tokens-remaining", "39000")

	snap := ParseHeaders(h)
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.Requests == nil || snap.Requests.Limit != 50 || snap.Requests.Remaining != 49 {
		t.Errorf("requests window: %+v", snap.Requests)
	}
	if snap.Requests.Reset == nil || !snap.Requests.Reset.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("reset: %v", snap.Requests.Reset)
	}
	if snap.InputTokens == nil || snap.InputTokens.Remaining != 39000 {
		t.Errorf("input tokens window: %+v", snap.InputTokens)
	}
	if snap.OutputTokens != nil {
		t.Errorf("unexpected output window: %+v", snap.OutputTokens)
	}
}

func TestParseHeadersEmpty(t *testing.T) {
	if snap := ParseHeaders(http.Header{}); snap != nil {
		t.Fatalf("got %+v, want nil", snap)
	}
}

func TestParseHeadersBadNumbers(t *testing.T) {
	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-remaining", "many")
	if snap := ParseHeaders(h); snap != nil {
		t.Fatalf("got %+v, want nil", snap)
	}
}

func TestRecordAndLatest(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if Latest() != nil {
		t.Fatal("expected no snapshot before recording")
	}

	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-remaining", "10")
	RecordFromResponse(h)

	snap := Latest()
	if snap == nil || snap.Requests.Remaining != 10 {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("captured_at not set")
	}

	// Responses without limit headers must not clobber the snapshot.
	RecordFromResponse(http.Header{})
	if Latest() == nil {
		t.Error("empty response cleared snapshot")
	}
}
