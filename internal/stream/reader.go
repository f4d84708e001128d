// Package stream reads Anthropic Messages SSE streams and reassembles the
// thinking blocks they carry.
package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Event is one parsed SSE event.
type Event struct {
	Name string
	Raw  json.RawMessage
	Data map[string]any
}

// Reader reads SSE events from an io.Reader. The Messages API names events
// with an "event:" line before each "data:" line.
type Reader struct {
	scanner *bufio.Scanner
	event   string
}

// NewReader creates a new SSE reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next SSE event. Returns nil, io.EOF when the stream ends.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			r.event = strings.TrimSpace(line[6:])
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(line[5:])
		if data == "" || data == "[DONE]" {
			continue
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			continue
		}
		name := r.event
		if name == "" {
			name, _ = parsed["type"].(string)
		}
		if name == "ping" {
			continue
		}
		return &Event{
			Name: name,
			Raw:  json.RawMessage(data),
			Data: parsed,
		}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
