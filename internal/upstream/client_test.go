package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/llmux/llmux/internal/config"
)

func TestMessagesHeaders(t *testing.T) {
	var got http.Header
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", false)
	resp, uerr := c.Messages(context.Background(), []byte(`{}`), false)
	if uerr != nil {
		t.Fatalf("unexpected error: %v", uerr)
	}
	defer resp.Body.Close()

	if gotPath != "/v1/messages" {
		t.Errorf("path: got %q", gotPath)
	}
	if got.Get("x-api-key") != "sk-test" {
		t.Errorf("x-api-key: got %q", got.Get("x-api-key"))
	}
	if got.Get("anthropic-version") != config.AnthropicVersion {
		t.Errorf("anthropic-version: got %q", got.Get("anthropic-version"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("accept: got %q", got.Get("Accept"))
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"id":"msg_1"}` {
		t.Errorf("body: got %q", body)
	}
}

func TestMessagesStreamAccept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("accept: got %q", r.Header.Get("Accept"))
		}
		w.Write([]byte("event: ping\ndata: {}\n\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", false)
	resp, uerr := c.Messages(context.Background(), []byte(`{}`), true)
	if uerr != nil {
		t.Fatalf("unexpected error: %v", uerr)
	}
	resp.Body.Close()
}

func TestMessagesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", false)
	_, uerr := c.Messages(context.Background(), []byte(`{}`), false)
	if uerr == nil {
		t.Fatal("expected error")
	}
	if uerr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: got %d", uerr.StatusCode)
	}
	if msg := uerr.Message(); msg != "invalid x-api-key" {
		t.Errorf("message: got %q", msg)
	}
}

func TestMessagesConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", false)
	_, uerr := c.Messages(context.Background(), []byte(`{}`), false)
	if uerr == nil {
		t.Fatal("expected error")
	}
	if uerr.StatusCode != http.StatusBadGateway {
		t.Errorf("status: got %d", uerr.StatusCode)
	}
}
