// Package handlers exposes the conversation engine over HTTP. Routing uses
// the Go 1.22+ method-and-pattern mux; every route is scoped to the domain
// resolved by the auth middleware.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"workpal/internal/auth"
	"workpal/internal/logger"
	"workpal/internal/repository/db"
	"workpal/internal/service/conversation"
	"workpal/internal/service/search"
	"workpal/internal/service/session"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handlers bundles the services behind the HTTP surface
type Handlers struct {
	conversations *conversation.Service
	search        *search.Service
	sessions      *session.Service
}

func NewHandlers(conversations *conversation.Service, searchService *search.Service, sessions *session.Service) *Handlers {
	return &Handlers{
		conversations: conversations,
		search:        searchService,
		sessions:      sessions,
	}
}

// sendError sends a standardized JSON error response
func (h *Handlers) sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// sendServiceError maps service errors onto HTTP statuses
func (h *Handlers) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.sendError(w, http.StatusNotFound, "Conversation not found", nil)
	case db.IsValidation(err):
		h.sendError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		logger.Log.WithError(err).Error("Request failed")
		h.sendError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// queryInt parses an integer query parameter, falling back on absence or junk
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func domainOf(r *http.Request) string {
	return auth.DomainFromContext(r.Context())
}
