// Package limits tracks provider rate-limit headers so operators can see
// remaining capacity without a separate dashboard.
package limits

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Window is one rate-limit dimension as reported by the provider.
type Window struct {
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	Reset     *time.Time `json:"reset,omitempty"`
}

// Snapshot holds all limit windows from one upstream response.
type Snapshot struct {
	Requests     *Window   `json:"requests,omitempty"`
	InputTokens  *Window   `json:"input_tokens,omitempty"`
	OutputTokens *Window   `json:"output_tokens,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

var (
	mu     sync.Mutex
	latest *Snapshot
)

// ParseHeaders extracts rate-limit windows from upstream response headers.
// Returns nil when the response carried none.
func ParseHeaders(headers http.Header) *Snapshot {
	snap := &Snapshot{
		Requests:     parseWindow(headers, "anthropic-ratelimit-requests"),
		InputTokens:  parseWindow(headers, "anthropic-ratelimit-input-tokens"),
		OutputTokens: parseWindow(headers, "anthropic-ratelimit-output-tokens"),
	}
	if snap.Requests == nil && snap.InputTokens == nil && snap.OutputTokens == nil {
		return nil
	}
	return snap
}

func parseWindow(headers http.Header, prefix string) *Window {
	remainingStr := headers.Get(prefix + "-remaining")
	if remainingStr == "" {
		return nil
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return nil
	}
	w := &Window{Remaining: remaining}
	if v := headers.Get(prefix + "-limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			w.Limit = i
		}
	}
	if v := headers.Get(prefix + "-reset"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			w.Reset = &t
		}
	}
	return w
}

// RecordFromResponse captures and stores rate limits from upstream headers.
func RecordFromResponse(headers http.Header) {
	snap := ParseHeaders(headers)
	if snap == nil {
		return
	}
	snap.CapturedAt = time.Now().UTC()

	mu.Lock()
	latest = snap
	mu.Unlock()
}

// Latest returns the most recent snapshot, or nil before any request.
func Latest() *Snapshot {
	mu.Lock()
	defer mu.Unlock()
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}

// Reset clears the stored snapshot.
func Reset() {
	mu.Lock()
	latest = nil
	mu.Unlock()
}
