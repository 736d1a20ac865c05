package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"workpal/internal/repository/db"
)

type UpdateSessionRequest struct {
	ActiveConversationID *string     `json:"active_conversation_id,omitempty"`
	Metadata             db.Metadata `json:"metadata,omitempty"`
}

// GetSession handles GET /api/session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), domainOf(r))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.sendError(w, http.StatusNotFound, "No session for this domain", nil)
			return
		}
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, session)
}

// UpdateSession handles PUT /api/session
func (h *Handlers) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.sessions.Update(r.Context(), domainOf(r), req.ActiveConversationID, req.Metadata)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, session)
}
