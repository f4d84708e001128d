package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/llmux/llmux/internal/codec"
	"github.com/llmux/llmux/internal/pipeline"
	"github.com/llmux/llmux/internal/stream"
	"github.com/llmux/llmux/internal/transform"
	"github.com/llmux/llmux/internal/types"
)

// handleChatCompletions handles POST /v1/chat/completions: the inbound
// OpenAI request is translated, forwarded, and the provider response is
// translated back.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, false)
	if !ok {
		return
	}

	requestID := uuid.NewString()
	prepared, perr := s.Preparer.Prepare(body, false, requestID)
	if perr != nil {
		codec.WriteOpenAIError(w, perr.StatusCode, perr.Message)
		return
	}

	isStream := prepared.Request.Stream
	resp, uerr := s.Upstream.Messages(r.Context(), prepared.Body, isStream)
	if uerr != nil {
		codec.WriteOpenAIError(w, uerr.StatusCode, uerr.Error())
		return
	}
	defer resp.Body.Close()

	completionID := "chatcmpl-" + requestID
	created := time.Now().Unix()

	if isStream {
		codec.WriteSSEHeaders(w, http.StatusOK)
		collector := stream.NewCollector()
		translator := transform.NewChatStreamTranslator(w, prepared.RequestedModel, completionID, created, prepared.IncludeUsage)
		translator.Translate(stream.NewReader(resp.Body), collector)
		s.recordThinking(prepared, collector.Blocks())
		return
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusBadGateway, "failed to read upstream response")
		return
	}
	msg, err := transform.DecodeMessageResponse(raw)
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusBadGateway, "unexpected upstream response shape")
		return
	}
	s.recordThinking(prepared, msg.Content)
	codec.WriteJSON(w, http.StatusOK, transform.MessageToChatCompletion(msg, prepared.RequestedModel, completionID, created))
}

// handleMessages handles POST /v1/messages. The body stays in the native
// dialect; preparation still resolves keywords, budgets, and backfill.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, true)
	if !ok {
		return
	}

	requestID := uuid.NewString()
	prepared, perr := s.Preparer.Prepare(body, true, requestID)
	if perr != nil {
		codec.WriteAnthropicError(w, perr.StatusCode, "invalid_request_error", perr.Message)
		return
	}

	isStream := prepared.Request.Stream
	resp, uerr := s.Upstream.Messages(r.Context(), prepared.Body, isStream)
	if uerr != nil {
		codec.WriteAnthropicError(w, uerr.StatusCode, "api_error", uerr.Message())
		return
	}
	defer resp.Body.Close()

	if isStream {
		s.relayMessagesStream(w, prepared, resp.Body)
		return
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		codec.WriteAnthropicError(w, http.StatusBadGateway, "api_error", "failed to read upstream response")
		return
	}
	if msg, err := transform.DecodeMessageResponse(raw); err == nil {
		s.recordThinking(prepared, msg.Content)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(raw)
}

// relayMessagesStream forwards provider SSE events verbatim while observing
// them for thinking artifacts.
func (s *Server) relayMessagesStream(w http.ResponseWriter, prepared *pipeline.Prepared, body io.Reader) {
	codec.WriteSSEHeaders(w, http.StatusOK)
	collector := stream.NewCollector()
	reader := stream.NewReader(body)
	for {
		evt, err := reader.Next()
		if err != nil {
			break
		}
		collector.Observe(evt)
		codec.WriteSSERaw(w, evt.Name, evt.Raw)
		if evt.Name == "message_stop" {
			break
		}
	}
	s.recordThinking(prepared, collector.Blocks())
}

// recordThinking stores reasoning artifacts from a finished response so the
// next turn of the same conversation can restore them.
func (s *Server) recordThinking(prepared *pipeline.Prepared, blocks []json.RawMessage) {
	if !prepared.Request.Thinking.Enabled() {
		return
	}
	s.Store.Record(prepared.RecordMessages, blocks)
}

// handleListModels handles GET /v1/models in both dialects, keyed off the
// anthropic-version header.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	specs := s.Registry.List()

	if isAnthropicRequest(r) {
		out := types.AnthropicModelList{Data: []types.AnthropicModel{}}
		for _, spec := range specs {
			out.Data = append(out.Data, types.AnthropicModel{
				ID:          spec.ID,
				Type:        "model",
				DisplayName: spec.DisplayName,
			})
		}
		codec.WriteJSON(w, http.StatusOK, out)
		return
	}

	created := time.Now().Unix()
	out := types.ModelList{Object: "list", Data: []types.ModelInfo{}}
	for _, spec := range specs {
		out.Data = append(out.Data, types.ModelInfo{
			ID:      spec.ID,
			Object:  "model",
			Created: created,
			OwnedBy: "anthropic",
		})
	}
	codec.WriteJSON(w, http.StatusOK, out)
}

// handleCacheClear handles POST /v1/cache/clear, dropping all stored
// thinking artifacts.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := s.Store.Len()
	s.Store.ClearAll()
	slog.Info("cache.cleared", "conversations", cleared)
	codec.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"cleared": cleared,
	})
}
