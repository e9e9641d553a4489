package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/daleelapp/daleel/internal/rag"
	"github.com/daleelapp/daleel/internal/store"
)

// ChatHandler streams grounded answers over SSE and persists the turns.
//
// Event types:
//   - chunk: partial answer text {"text": "..."}
//   - done:  full answer {"response": "..."}
//   - error: terminal failure {"code": "...", "message": "..."}
//
// A stream always ends with exactly one done or one error event.
type ChatHandler struct {
	store      store.Store
	answerer   Answerer
	memorySize int
	logger     *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(st store.Store, answerer Answerer, memorySize int, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{store: st, answerer: answerer, memorySize: memorySize, logger: logger}
}

// SSEEvent is one frame of the answer stream.
type SSEEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SSEChunkData is the data for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the data for "done" events.
type SSEDoneData struct {
	Response string `json:"response"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type messageRequest struct {
	Message string `json:"message"`
}

// streamAnswer handles POST /api/stream-answer/{id}/messages.
//
// The user message is validated and persisted, the conversation title is
// generated on first real content, then the answer streams back as SSE.
// The assistant turn is persisted by the client through a follow-up call to
// the ai-message endpoint once the stream ends.
func (h *ChatHandler) streamAnswer(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	uid := userID(r)

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	ctx := r.Context()
	conversation, err := h.store.GetConversation(ctx, conversationID, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("getting conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	if conversation.IsNew {
		if err := h.store.MarkConversationUsed(ctx, conversation.ID); err != nil {
			h.logger.Error("marking conversation used", "error", err)
		}
	}
	if !conversation.IsTitleChanged {
		h.maybeSetTitle(r, conversation.ID, req.Message)
	}

	if _, err := h.store.AddMessage(ctx, conversation.ID, true, req.Message); err != nil {
		h.logger.Error("saving user message", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	history, err := h.history(r, conversation.ID)
	if err != nil {
		h.logger.Error("loading history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	stream, err := h.answerer.StreamAnswer(ctx, req.Message, history)
	if err != nil {
		h.logger.Error("starting answer stream", "error", err, "conversation_id", conversation.ID)
		writeSSEError(w, flusher, "ANSWER_FAILED", err.Error())
		return
	}

	var full strings.Builder
	for text, streamErr := range stream {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "conversation_id", conversation.ID)
			return
		default:
		}

		if streamErr != nil {
			h.logger.Error("stream failed", "error", streamErr, "conversation_id", conversation.ID)
			writeSSEError(w, flusher, "STREAM_ERROR", streamErr.Error())
			return
		}
		if text != "" {
			full.WriteString(text)
			writeSSEChunk(w, flusher, text)
		}
	}

	writeSSEDone(w, flusher, full.String())
	h.logger.Info("answer streamed",
		"conversation_id", conversation.ID,
		"response_len", full.Len())
}

// saveAIMessage handles POST /api/stream-answer/{id}/ai-message: the client
// posts the assembled answer back after the SSE stream completes.
func (h *ChatHandler) saveAIMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	if _, err := h.store.GetConversation(r.Context(), conversationID, userID(r)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("getting conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	if _, err := h.store.AddMessage(r.Context(), conversationID, false, req.Message); err != nil {
		h.logger.Error("saving assistant message", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// maybeSetTitle asks the model for a title and applies it. A greeting
// produces no title; the conversation keeps its default until real content
// arrives. Title failures never block the answer.
func (h *ChatHandler) maybeSetTitle(r *http.Request, conversationID, message string) {
	title, err := h.answerer.Title(r.Context(), message)
	if err != nil {
		h.logger.Warn("generating title", "error", err)
		return
	}
	if title == "" {
		return
	}
	if err := h.store.SetConversationTitle(r.Context(), conversationID, title); err != nil {
		h.logger.Error("setting title", "error", err)
	}
}

// history loads recent messages and pairs them into completed
// question/answer exchanges. A trailing unanswered user message is
// dropped.
func (h *ChatHandler) history(r *http.Request, conversationID string) ([]rag.Exchange, error) {
	messages, err := h.store.RecentMessages(r.Context(), conversationID, h.memorySize*2)
	if err != nil {
		return nil, err
	}

	var history []rag.Exchange
	for i := 0; i+1 < len(messages); i += 2 {
		if messages[i].IsUser && !messages[i+1].IsUser {
			history = append(history, rag.Exchange{
				Question: messages[i].Content,
				Answer:   messages[i+1].Content,
			})
		}
	}
	return history, nil
}

