package handlers

import (
	"encoding/json"
	"net/http"

	"workpal/internal/repository/db"
	"workpal/internal/service/conversation"
)

type CreateConversationRequest struct {
	Title    string      `json:"title"`
	Summary  string      `json:"summary,omitempty"`
	Metadata db.Metadata `json:"metadata,omitempty"`
}

type UpdateConversationRequest struct {
	Title    *string                `json:"title,omitempty"`
	Summary  *string                `json:"summary,omitempty"`
	Status   *db.ConversationStatus `json:"status,omitempty"`
	Metadata db.Metadata            `json:"metadata,omitempty"`
}

type ConversationsResponse struct {
	Conversations []db.ConversationSummary `json:"conversations"`
	Limit         int                      `json:"limit"`
	Offset        int                      `json:"offset"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateConversation handles POST /api/conversations
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conv, err := h.conversations.Create(r.Context(), domainOf(r), conversation.CreateParams{
		Title:    req.Title,
		Summary:  req.Summary,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, conv)
}

// GetConversation handles GET /api/conversations/{id}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), r.PathValue("id"), domainOf(r))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, conv)
}

// ListConversations handles GET /api/conversations
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	summaries, err := h.conversations.List(r.Context(), domainOf(r), limit, offset)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, ConversationsResponse{
		Conversations: summaries,
		Limit:         limit,
		Offset:        offset,
	})
}

// UpdateConversation handles PUT /api/conversations/{id}
func (h *Handlers) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conv, err := h.conversations.Update(r.Context(), r.PathValue("id"), domainOf(r), db.ConversationUpdate{
		Title:    req.Title,
		Summary:  req.Summary,
		Status:   req.Status,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, conv)
}

// DeleteConversation handles DELETE /api/conversations/{id}
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.conversations.Delete(r.Context(), r.PathValue("id"), domainOf(r))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	if !deleted {
		h.sendError(w, http.StatusNotFound, "Conversation not found", nil)
		return
	}
	h.sendJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: "Conversation deleted",
	})
}

// SearchConversations handles GET /api/conversations/search
func (h *Handlers) SearchConversations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.sendError(w, http.StatusBadRequest, "Query parameter q is required", nil)
		return
	}

	result, err := h.search.Search(r.Context(), domainOf(r), query, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}
