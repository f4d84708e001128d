package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/llmux/llmux/internal/codec"
	"github.com/llmux/llmux/internal/config"
	"github.com/llmux/llmux/internal/limits"
)

// upstreamHTTPTimeout is the maximum time allowed for an upstream request.
// SSE streams can be long-lived, so we use a generous timeout.
const upstreamHTTPTimeout = 5 * time.Minute

// httpClient is the shared HTTP client for upstream requests with a timeout.
var httpClient = &http.Client{Timeout: upstreamHTTPTimeout}

// Response wraps the upstream HTTP response.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
	Headers    http.Header
}

// Error represents a failed upstream request with error details.
type Error struct {
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return codec.FormatUpstreamError(e.StatusCode, e.Body)
}

// Message extracts a human-readable description from the error body.
func (e *Error) Message() string {
	return codec.ExtractUpstreamErrorMessage(e.Body)
}

// Client makes requests to the Anthropic Messages API.
type Client struct {
	BaseURL string
	APIKey  string
	Verbose bool
}

// NewClient creates a new upstream client for the given base URL and key.
func NewClient(baseURL, apiKey string, verbose bool) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey, Verbose: verbose}
}

// Messages posts a prepared request body to /v1/messages. On HTTP-level
// success (any status below 400) the caller owns resp.Body and must close
// it; error statuses are drained here and returned as *Error.
func (c *Client) Messages(ctx context.Context, body []byte, stream bool) (*Response, *Error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{StatusCode: http.StatusInternalServerError, Body: []byte(err.Error())}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", config.AnthropicVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}

	if c.Verbose {
		slog.Info("upstream.request",
			"url", httpReq.URL.String(),
			"stream", stream,
			"body_bytes", len(body),
		)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{
			StatusCode: http.StatusBadGateway,
			Body:       []byte(fmt.Sprintf("upstream request failed: %v", err)),
		}
	}

	limits.RecordFromResponse(resp.Header)

	if c.Verbose {
		attrs := []any{"status", resp.StatusCode}
		if id := resp.Header.Get("request-id"); id != "" {
			attrs = append(attrs, "request_id", id)
		}
		slog.Info("upstream.response", attrs...)
	}

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &Error{StatusCode: resp.StatusCode, Body: errBody}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Headers:    resp.Header,
	}, nil
}
