package handler

import (
	"context"
	"net/http"

	"github.com/earnx/earnx/internal/module/market"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
)

// MarketService defines the market operations needed by the handler
type MarketService interface {
	Overview(ctx context.Context) (*market.Overview, error)
	Stats(ctx context.Context) (*market.Stats, error)
	Balance(ctx context.Context, address string) (*market.Balance, error)
}

// MarketHandler serves protocol stats, prices and balances
type MarketHandler struct {
	service MarketService
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(service MarketService) *MarketHandler {
	return &MarketHandler{service: service}
}

// Stats handles GET /stats
func (h *MarketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

// Overview handles GET /market
func (h *MarketHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, overview, http.StatusOK)
}

// Balance handles GET /balance
func (h *MarketHandler) Balance(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	balance, err := h.service.Balance(r.Context(), address)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, balance, http.StatusOK)
}
