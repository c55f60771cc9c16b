package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/pkg/logger"
)

// AccountLister lists the accounts the wallet provider can sign for
type AccountLister interface {
	Accounts(ctx context.Context) ([]string, error)
}

// TokenIssuer issues session tokens
type TokenIssuer interface {
	GenerateToken(address string) (string, time.Time, error)
}

// SessionHandler connects a wallet and issues a session token
type SessionHandler struct {
	wallet  AccountLister
	tokens  TokenIssuer
	network NetworkInfo
	logger  *logger.Logger
}

// NetworkInfo is what the browser needs to set up its wallet connection
type NetworkInfo struct {
	ChainID                int64  `json:"chain_id"`
	ChainName              string `json:"chain_name"`
	ExplorerURL            string `json:"explorer_url"`
	ProtocolAddress        string `json:"protocol_address"`
	WalletConnectProjectID string `json:"wallet_connect_project_id"`
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(wallet AccountLister, tokens TokenIssuer, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		wallet: wallet,
		tokens: tokens,
		logger: log.WithField("handler", "session"),
	}
}

// WithNetwork sets the network description served by Network
func (h *SessionHandler) WithNetwork(info NetworkInfo) *SessionHandler {
	h.network = info
	return h
}

// Network handles GET /session/network
func (h *SessionHandler) Network(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.network, http.StatusOK)
}

// SessionRequest represents the connect wallet request body
type SessionRequest struct {
	Address string `json:"address"`
}

// SessionResponse represents a connected wallet session
type SessionResponse struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	ExpiresAt string `json:"expires_at"`
}

// Connect handles POST /session
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	address, err := evm.ValidateAddress(req.Address)
	if err != nil {
		respondError(w, "invalid wallet address", http.StatusBadRequest)
		return
	}

	accounts, err := h.wallet.Accounts(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error("failed to list wallet accounts", "error", err)
		respondError(w, "wallet provider unavailable", http.StatusBadGateway)
		return
	}

	if !containsAddress(accounts, address) {
		respondError(w, "address is not managed by the connected wallet", http.StatusForbidden)
		return
	}

	token, expiresAt, err := h.tokens.GenerateToken(address)
	if err != nil {
		respondError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, SessionResponse{
		Token:     token,
		Address:   address,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, http.StatusCreated)
}

func containsAddress(accounts []string, address string) bool {
	for _, a := range accounts {
		if evm.AddressesEqual(a, address) {
			return true
		}
	}
	return false
}
