package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/llmux/llmux/internal/apikey"
	"github.com/llmux/llmux/internal/codec"
	"github.com/llmux/llmux/internal/config"
)

const invalidKeyError = "Invalid or missing API key"

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqHeaders := r.Header.Get("Access-Control-Request-Headers")
		if reqHeaders == "" {
			reqHeaders = "Authorization, Content-Type, Accept, x-api-key, anthropic-version"
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware guards /v1/ routes with stored API keys. When the key store
// is empty, requests pass without credentials.
func authMiddleware(keys *apikey.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if keys == nil || !keys.HasKeys() || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		switch r.URL.Path {
		case "/", "/health":
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		token := clientKey(r)
		if token == "" {
			writeAuthError(w, r)
			return
		}
		rec, ok := keys.Verify(token)
		if !ok {
			writeAuthError(w, r)
			return
		}

		slog.Debug("request.authenticated", "key_id", rec.ID, "key_name", rec.Name)
		next.ServeHTTP(w, r)
	})
}

// clientKey extracts the caller's key from either dialect's auth header.
func clientKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("x-api-key")); key != "" {
		return key
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request) {
	if isAnthropicRequest(r) {
		codec.WriteAnthropicError(w, http.StatusUnauthorized, "authentication_error", invalidKeyError)
		return
	}
	codec.WriteOpenAIError(w, http.StatusUnauthorized, invalidKeyError)
}

func isAnthropicRequest(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get("anthropic-version")) != "" ||
		strings.TrimSpace(r.Header.Get("anthropic-beta")) != "" ||
		r.URL.Path == "/v1/messages"
}

func verboseMiddleware(cfg *config.ServerConfig, next http.Handler) http.Handler {
	if cfg == nil || !cfg.Verbose {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
