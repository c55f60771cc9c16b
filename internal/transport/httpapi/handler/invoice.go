package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/earnx/earnx/internal/module/invoices"
	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/platform/invoice"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
	"github.com/earnx/earnx/pkg/logger"
	"github.com/earnx/earnx/pkg/money"
)

// InvoiceService defines the supplier and maintenance operations needed by the handler
type InvoiceService interface {
	List(ctx context.Context, filter *invoice.Status) ([]opportunity.View, error)
	Supplied(ctx context.Context, supplier string) ([]opportunity.View, error)
	Status(ctx context.Context, id uint64) (*invoices.StatusReport, error)
	Submit(ctx context.Context, supplier string, sub invoices.Submission) (*invoices.TxOutcome, error)
	StartVerification(ctx context.Context, supplier string, id uint64, documentHash string) (*invoices.TxOutcome, error)
	OracleResponse(ctx context.Context) (*invoices.OracleResponse, error)
	RefreshPrices(ctx context.Context, operator string) (*invoices.TxOutcome, error)
	InitializeProtocol(ctx context.Context, operator string) (*invoices.TxOutcome, error)
	TestVerification(ctx context.Context, operator string) (*invoices.TxOutcome, error)
}

// InvoiceHandler serves invoice submission, lookup and protocol maintenance
type InvoiceHandler struct {
	service InvoiceService
	logger  *logger.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(service InvoiceService, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		logger:  log.WithField("handler", "invoice"),
	}
}

// SubmitInvoiceRequest is the body of POST /invoices.
// Amount is in whole stablecoin units and due_date is RFC 3339.
type SubmitInvoiceRequest struct {
	Buyer           string       `json:"buyer"`
	Amount          money.Amount `json:"amount"`
	Commodity       string       `json:"commodity"`
	SupplierCountry string       `json:"supplier_country"`
	BuyerCountry    string       `json:"buyer_country"`
	ExporterName    string       `json:"exporter_name"`
	BuyerName       string       `json:"buyer_name"`
	DueDate         time.Time    `json:"due_date"`
	DocumentHash    string       `json:"document_hash"`
}

// VerificationRequest is the body of POST /invoices/{id}/verification
type VerificationRequest struct {
	DocumentHash string `json:"document_hash"`
}

// InvoiceListResponse wraps an invoice list
type InvoiceListResponse struct {
	Invoices []opportunity.View `json:"invoices"`
	Count    int                `json:"count"`
}

// List handles GET /invoices with an optional ?status= filter (name or number)
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter *invoice.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := parseStatus(raw)
		if !ok {
			respondError(w, "invalid status filter", http.StatusBadRequest)
			return
		}
		filter = &st
	}

	views, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondInvoices(w, views)
}

// Supplied handles GET /supplier/invoices
func (h *InvoiceHandler) Supplied(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	views, err := h.service.Supplied(r.Context(), address)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondInvoices(w, views)
}

// Status handles GET /invoices/{id}/status
func (h *InvoiceHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}

	report, err := h.service.Status(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, report, http.StatusOK)
}

// Submit handles POST /invoices
func (h *InvoiceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req SubmitInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := h.service.Submit(r.Context(), address, invoices.Submission{
		Buyer:           req.Buyer,
		Amount:          req.Amount.Decimal,
		Commodity:       req.Commodity,
		SupplierCountry: req.SupplierCountry,
		BuyerCountry:    req.BuyerCountry,
		ExporterName:    req.ExporterName,
		BuyerName:       req.BuyerName,
		DueDate:         req.DueDate,
		DocumentHash:    req.DocumentHash,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	h.logger.WithContext(r.Context()).Info("invoice submitted", "tx_hash", out.TxHash, "amount", req.Amount.String())
	respondJSON(w, out, http.StatusCreated)
}

// StartVerification handles POST /invoices/{id}/verification
func (h *InvoiceHandler) StartVerification(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}

	var req VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := h.service.StartVerification(r.Context(), address, id, req.DocumentHash)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, out, http.StatusOK)
}

// Oracle handles GET /verification/oracle
func (h *InvoiceHandler) Oracle(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.OracleResponse(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, out, http.StatusOK)
}

// RefreshPrices handles POST /admin/prices/refresh
func (h *InvoiceHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, "prices refreshed", h.service.RefreshPrices)
}

// InitializeProtocol handles POST /admin/protocol/initialize
func (h *InvoiceHandler) InitializeProtocol(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, "protocol initialized", h.service.InitializeProtocol)
}

// TestVerification handles POST /admin/verification/test
func (h *InvoiceHandler) TestVerification(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, "test verification sent", h.service.TestVerification)
}

func (h *InvoiceHandler) maintenance(w http.ResponseWriter, r *http.Request, event string,
	op func(ctx context.Context, operator string) (*invoices.TxOutcome, error)) {
	address, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	out, err := op(r.Context(), address)
	if err != nil {
		respondAppError(w, err)
		return
	}

	h.logger.WithContext(r.Context()).Info(event, "tx_hash", out.TxHash)
	respondJSON(w, out, http.StatusOK)
}

func respondInvoices(w http.ResponseWriter, views []opportunity.View) {
	if views == nil {
		views = []opportunity.View{}
	}
	respondJSON(w, InvoiceListResponse{Invoices: views, Count: len(views)}, http.StatusOK)
}

func invoiceID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "invalid invoice ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseStatus(raw string) (invoice.Status, bool) {
	if st, ok := invoice.ParseStatus(raw); ok {
		return st, true
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil || n > uint64(invoice.StatusRejected) {
		return 0, false
	}
	return invoice.Status(n), true
}
