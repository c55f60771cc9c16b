package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
)

// OpportunityService defines the opportunity operations needed by the handler
type OpportunityService interface {
	Opportunities(ctx context.Context) ([]opportunity.View, error)
	Details(ctx context.Context, id uint64) (*opportunity.View, error)
	Portfolio(ctx context.Context, investor string) ([]opportunity.PortfolioEntry, error)
	Refresh(ctx context.Context, investor string) error
}

// OpportunityHandler serves invoice listings and the caller's portfolio
type OpportunityHandler struct {
	service OpportunityService
}

// NewOpportunityHandler creates a new opportunity handler
func NewOpportunityHandler(service OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{service: service}
}

// OpportunityListResponse wraps the opportunity list
type OpportunityListResponse struct {
	Opportunities []opportunity.View `json:"opportunities"`
	Count         int                `json:"count"`
}

// PortfolioResponse wraps the caller's investments
type PortfolioResponse struct {
	Address     string                       `json:"address"`
	Investments []opportunity.PortfolioEntry `json:"investments"`
	Count       int                          `json:"count"`
}

// List handles GET /opportunities
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Opportunities(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	if views == nil {
		views = []opportunity.View{}
	}
	respondJSON(w, OpportunityListResponse{Opportunities: views, Count: len(views)}, http.StatusOK)
}

// Get handles GET /opportunities/{id}
func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "invalid invoice ID", http.StatusBadRequest)
		return
	}

	view, err := h.service.Details(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, view, http.StatusOK)
}

// Portfolio handles GET /portfolio
func (h *OpportunityHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.service.Portfolio(r.Context(), address)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if entries == nil {
		entries = []opportunity.PortfolioEntry{}
	}
	respondJSON(w, PortfolioResponse{Address: address, Investments: entries, Count: len(entries)}, http.StatusOK)
}

// Refresh handles POST /refresh
func (h *OpportunityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Refresh(r.Context(), address); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "refreshed"}, http.StatusOK)
}
