package server

import (
	"net/http"

	"github.com/llmux/llmux/internal/codec"
	"github.com/llmux/llmux/internal/limits"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"status":               "ok",
		"cached_conversations": s.Store.Len(),
	}
	if snap := limits.Latest(); snap != nil {
		out["rate_limits"] = snap
	}
	codec.WriteJSON(w, http.StatusOK, out)
}
