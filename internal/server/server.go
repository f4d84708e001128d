package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/llmux/llmux/internal/apikey"
	"github.com/llmux/llmux/internal/codec"
	"github.com/llmux/llmux/internal/config"
	"github.com/llmux/llmux/internal/models"
	"github.com/llmux/llmux/internal/pipeline"
	"github.com/llmux/llmux/internal/state"
	"github.com/llmux/llmux/internal/upstream"
)

// maxBodyBytes limits the size of incoming request bodies.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// Server is the main HTTP server.
type Server struct {
	Config     *config.ServerConfig
	httpServer *http.Server
	Preparer   *pipeline.Preparer
	Registry   *models.Registry
	Store      *state.Store
	Keys       *apikey.Store
	Upstream   *upstream.Client
}

// New creates a new server with all routes registered.
func New(cfg *config.ServerConfig) *Server {
	reg := models.NewRegistry(cfg.DefaultModel)
	store := state.NewStore()
	keys := apikey.NewStore(cfg.KeysFile)

	s := &Server{
		Config:   cfg,
		Registry: reg,
		Store:    store,
		Keys:     keys,
		Upstream: upstream.NewClient(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.Verbose),
		Preparer: &pipeline.Preparer{
			Store:            store,
			Registry:         reg,
			DefaultMaxTokens: cfg.DefaultMaxTokens,
		},
	}

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	// OpenAI-compatible routes
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleListModels)

	// Anthropic-compatible route
	mux.HandleFunc("POST /v1/messages", s.handleMessages)

	// Maintenance
	mux.HandleFunc("POST /v1/cache/clear", s.handleCacheClear)

	// OPTIONS for CORS preflight
	mux.HandleFunc("OPTIONS /", s.handleOptions)

	handler := corsMiddleware(authMiddleware(keys, verboseMiddleware(cfg, mux)))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func readBody(w http.ResponseWriter, r *http.Request, anthropic bool) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		if anthropic {
			codec.WriteAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "Failed to read request body")
		} else {
			codec.WriteOpenAIError(w, http.StatusBadRequest, "Failed to read request body")
		}
		return nil, false
	}
	return body, true
}
