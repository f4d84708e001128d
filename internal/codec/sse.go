package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// WriteSSEHeaders prepares the response for server-sent events.
func WriteSSEHeaders(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(status)
}

// WriteSSEData marshals v and writes it as one data event.
func WriteSSEData(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal SSE chunk", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		slog.Debug("client disconnected during SSE write", "error", err)
		return
	}
	flush(w)
}

// WriteSSERaw writes preformatted event bytes unchanged.
func WriteSSERaw(w http.ResponseWriter, name string, data json.RawMessage) {
	if name != "" {
		fmt.Fprintf(w, "event: %s\n", name)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		slog.Debug("client disconnected during SSE write", "error", err)
		return
	}
	flush(w)
}

// WriteSSEDone terminates an OpenAI-style stream.
func WriteSSEDone(w http.ResponseWriter) {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		slog.Debug("client disconnected during SSE done", "error", err)
		return
	}
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
