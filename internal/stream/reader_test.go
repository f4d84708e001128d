package stream

import (
	"io"
	"strings"
	"testing"
)

func TestReaderNamedEvents(t *testing.T) {
	input := "event: message_start\n" +
		`data: {"type":"message_start","message":{}}` + "\n\n" +
		"event: ping\n" +
		`data: {"type":"ping"}` + "\n\n" +
		"event: message_stop\n" +
		`data: {"type":"message_stop"}` + "\n\n"

	r := NewReader(strings.NewReader(input))

	evt, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if evt.Name != "message_start" {
		t.Errorf("name: %q", evt.Name)
	}
	if evt.Data["type"] != "message_start" {
		t.Errorf("data: %+v", evt.Data)
	}

	// Pings are dropped.
	evt, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if evt.Name != "message_stop" {
		t.Errorf("name: %q", evt.Name)
	}

	if _, err = r.Next(); err != io.EOF {
		t.Errorf("want EOF, got %v", err)
	}
}

func TestReaderTypeFallback(t *testing.T) {
	// No event: lines; the name comes from the data payload.
	input := `data: {"type":"content_block_stop","index":0}` + "\n\n"
	r := NewReader(strings.NewReader(input))
	evt, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if evt.Name != "content_block_stop" {
		t.Errorf("name: %q", evt.Name)
	}
}

func TestReaderSkipsGarbage(t *testing.T) {
	input := ": comment\n" +
		"data: [DONE]\n\n" +
		"data: not json\n\n" +
		`data: {"type":"message_stop"}` + "\n\n"
	r := NewReader(strings.NewReader(input))
	evt, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if evt.Name != "message_stop" {
		t.Errorf("name: %q", evt.Name)
	}
}
