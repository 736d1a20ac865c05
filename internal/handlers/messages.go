package handlers

import (
	"encoding/json"
	"net/http"

	"workpal/internal/repository/db"
	"workpal/internal/service/conversation"
)

type AddMessageRequest struct {
	ChatID         *string                `json:"chat_id,omitempty"`
	MessageType    db.MessageType         `json:"message_type"`
	Content        string                 `json:"content"`
	Metadata       db.Metadata            `json:"metadata,omitempty"`
	TokenCount     *int                   `json:"token_count,omitempty"`
	ReferenceLinks []ReferenceLinkRequest `json:"reference_links,omitempty"`
}

type ReferenceLinkRequest struct {
	URL           string      `json:"url"`
	Title         string      `json:"title,omitempty"`
	ReferenceType string      `json:"reference_type,omitempty"`
	Metadata      db.Metadata `json:"metadata,omitempty"`
}

type BulkAddMessagesRequest struct {
	Messages []AddMessageRequest `json:"messages"`
}

type UpdateMessageRequest struct {
	Content  string      `json:"content"`
	Metadata db.Metadata `json:"metadata,omitempty"`
}

type FeedbackRequest struct {
	MessageID string  `json:"message_id,omitempty"`
	ChatID    string  `json:"chat_id,omitempty"`
	Score     int     `json:"score"`
	Text      *string `json:"text,omitempty"`
}

type FeedbackResponse struct {
	Updated bool `json:"updated"`
}

func messageParams(req AddMessageRequest) conversation.MessageParams {
	params := conversation.MessageParams{
		ChatID:      req.ChatID,
		MessageType: req.MessageType,
		Content:     req.Content,
		Metadata:    req.Metadata,
		TokenCount:  req.TokenCount,
	}
	for _, link := range req.ReferenceLinks {
		params.ReferenceLinks = append(params.ReferenceLinks, conversation.ReferenceLinkParams{
			URL:           link.URL,
			Title:         link.Title,
			ReferenceType: link.ReferenceType,
			Metadata:      link.Metadata,
		})
	}
	return params
}

// AddMessage handles POST /api/conversations/{id}/messages
func (h *Handlers) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.conversations.AddMessage(r.Context(), r.PathValue("id"), domainOf(r), messageParams(req))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, msg)
}

// BulkAddMessages handles POST /api/conversations/{id}/messages/bulk
func (h *Handlers) BulkAddMessages(w http.ResponseWriter, r *http.Request) {
	var req BulkAddMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Messages) == 0 {
		h.sendError(w, http.StatusBadRequest, "Messages list cannot be empty", nil)
		return
	}

	batch := make([]conversation.MessageParams, 0, len(req.Messages))
	for _, msgReq := range req.Messages {
		batch = append(batch, messageParams(msgReq))
	}

	result, err := h.conversations.BulkAddMessages(r.Context(), r.PathValue("id"), domainOf(r), batch)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// UpdateMessage handles PUT /api/conversations/{id}/messages/{chat_id}
func (h *Handlers) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var req UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.conversations.UpdateMessageContent(r.Context(),
		r.PathValue("id"), r.PathValue("chat_id"), domainOf(r), req.Content, req.Metadata)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, msg)
}

// RecentMessages handles GET /api/conversations/{id}/messages/recent
func (h *Handlers) RecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	docID := r.URL.Query().Get("doc_id")

	var messages []db.Message
	var err error
	if r.URL.Query().Get("cache_only") == "true" {
		messages, err = h.conversations.RecentMessagesCacheOnly(r.Context(), r.PathValue("id"), domainOf(r), limit, docID)
	} else {
		messages, err = h.conversations.RecentMessages(r.Context(), r.PathValue("id"), domainOf(r), limit, docID)
	}
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, map[string][]db.Message{"messages": messages})
}

// UpdateFeedback handles POST /api/conversations/{id}/feedback. The target
// message is named either by its id or by its chat correlation id.
func (h *Handlers) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MessageID == "" && req.ChatID == "" {
		h.sendError(w, http.StatusBadRequest, "Either message_id or chat_id is required", nil)
		return
	}

	var updated bool
	var err error
	if req.MessageID != "" {
		updated, err = h.conversations.UpdateFeedback(r.Context(), r.PathValue("id"), req.MessageID, domainOf(r), req.Score, req.Text)
	} else {
		updated, err = h.conversations.UpdateFeedbackByChatID(r.Context(), r.PathValue("id"), req.ChatID, domainOf(r), req.Score, req.Text)
	}
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	if !updated {
		h.sendError(w, http.StatusNotFound, "Message not found", nil)
		return
	}
	h.sendJSON(w, http.StatusOK, FeedbackResponse{Updated: true})
}
