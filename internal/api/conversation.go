package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/daleelapp/daleel/internal/store"
)

// DefaultConversationTitle is used until the first message produces a real
// title.
const DefaultConversationTitle = "New Conversation"

// ConversationHandler handles conversation listing and creation.
type ConversationHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(st store.Store, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{store: st, logger: logger}
}

func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.ListConversations(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// create returns the user's existing still-unused conversation when one
// exists, so repeated "new chat" clicks do not pile up empty threads.
func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	// Body is optional; a missing or empty title falls back to the default.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Title == "" {
		req.Title = DefaultConversationTitle
	}

	uid := userID(r)

	if existing, err := h.store.FindNewConversation(r.Context(), uid); err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("finding new conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	conversation, err := h.store.CreateConversation(r.Context(), uid, req.Title)
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

func (h *ConversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conversation, err := h.store.GetConversation(r.Context(), id, userID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("getting conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), id)
	if err != nil {
		h.logger.Error("listing messages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       conversation.ID,
		"title":    conversation.Title,
		"is_new":   conversation.IsNew,
		"messages": messages,
	})
}
