package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/earnx/earnx/internal/module/invest"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
	"github.com/earnx/earnx/pkg/logger"
	"github.com/earnx/earnx/pkg/money"
)

// Investor defines the orchestrator operations needed by the handler
type Investor interface {
	Start(ctx context.Context, req invest.Request) (uuid.UUID, error)
	State(investor string) invest.State
	MintTestFunds(ctx context.Context, investor string) (*invest.MintResult, error)
}

// InvestmentHandler turns user intents into orchestrator flows
type InvestmentHandler struct {
	investor Investor
	logger   *logger.Logger
}

// NewInvestmentHandler creates a new investment handler
func NewInvestmentHandler(investor Investor, log *logger.Logger) *InvestmentHandler {
	return &InvestmentHandler{
		investor: investor,
		logger:   log.WithField("handler", "investment"),
	}
}

// InvestRequest represents the invest request body. Amount accepts a JSON
// number or a display string such as "$1,250.50", in whole stablecoin units.
type InvestRequest struct {
	InvoiceID uint64       `json:"invoice_id"`
	Amount    money.Amount `json:"amount"`
}

// InvestAcceptedResponse is returned once a flow has started
type InvestAcceptedResponse struct {
	FlowID    string `json:"flow_id"`
	InvoiceID uint64 `json:"invoice_id"`
	Amount    string `json:"amount"`
	State     string `json:"state"`
}

// StateResponse reports the caller's flow state
type StateResponse struct {
	Address string `json:"address"`
	State   string `json:"state"`
	Busy    bool   `json:"busy"`
}

// FaucetResponse describes a completed test mint
type FaucetResponse struct {
	Amount string `json:"amount"`
	TxHash string `json:"tx_hash"`
}

// Invest handles POST /investments
func (h *InvestmentHandler) Invest(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req InvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.InvoiceID == 0 {
		respondError(w, "invoice_id is required", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	flowID, err := h.investor.Start(r.Context(), invest.Request{
		Investor:  address,
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount.Decimal,
	})
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.logger.WithContext(r.Context()).Info("investment flow started",
		"flow_id", flowID.String(),
		"invoice_id", req.InvoiceID,
		"amount", req.Amount.String(),
	)

	respondJSON(w, InvestAcceptedResponse{
		FlowID:    flowID.String(),
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount.String(),
		State:     string(h.investor.State(address)),
	}, http.StatusAccepted)
}

// State handles GET /investments/state
func (h *InvestmentHandler) State(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	state := h.investor.State(address)
	respondJSON(w, StateResponse{
		Address: address,
		State:   string(state),
		Busy:    state != invest.StateIdle,
	}, http.StatusOK)
}

// Faucet handles POST /faucet
func (h *InvestmentHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	res, err := h.investor.MintTestFunds(r.Context(), address)
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	respondJSON(w, FaucetResponse{Amount: res.Amount.String(), TxHash: res.TxHash}, http.StatusOK)
}

func (h *InvestmentHandler) respondFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invest.ErrFlowInProgress):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, invest.ErrInvalidInvestor):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		respondAppError(w, err)
	}
}
