package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/earnx/earnx/internal/module/status"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
)

// StatusBoard defines the status board operations needed by the handler
type StatusBoard interface {
	List(address string) []status.Entry
	Dismiss(address string, id uuid.UUID) bool
}

// StatusHandler serves the caller's transaction status messages
type StatusHandler struct {
	board StatusBoard
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(board StatusBoard) *StatusHandler {
	return &StatusHandler{board: board}
}

// StatusListResponse wraps the caller's status entries, newest first
type StatusListResponse struct {
	Entries []status.Entry `json:"entries"`
}

// List handles GET /status
func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	entries := h.board.List(address)
	if entries == nil {
		entries = []status.Entry{}
	}
	respondJSON(w, StatusListResponse{Entries: entries}, http.StatusOK)
}

// Dismiss handles DELETE /status/{id}
func (h *StatusHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid status ID", http.StatusBadRequest)
		return
	}

	if !h.board.Dismiss(address, id) {
		respondError(w, "status entry not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
