package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/earnx/earnx/internal/module/invest"
	"github.com/earnx/earnx/internal/module/market"
	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/module/status"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/internal/transport/httpapi/handler"
	"github.com/earnx/earnx/internal/transport/httpapi/middleware"
	"github.com/earnx/earnx/pkg/logger"
)

const wallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func testLogger() *logger.Logger {
	return logger.New("development", io.Discard)
}

func withWallet(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.AddressKey, wallet))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dest))
}

// =============================================================================
// Mocks
// =============================================================================

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Accounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockInvestor struct {
	mock.Mock
}

func (m *MockInvestor) Start(ctx context.Context, req invest.Request) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockInvestor) State(investor string) invest.State {
	return m.Called(investor).Get(0).(invest.State)
}

func (m *MockInvestor) MintTestFunds(ctx context.Context, investor string) (*invest.MintResult, error) {
	args := m.Called(ctx, investor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invest.MintResult), args.Error(1)
}

type MockOpportunities struct {
	mock.Mock
}

func (m *MockOpportunities) Opportunities(ctx context.Context) ([]opportunity.View, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]opportunity.View), args.Error(1)
}

func (m *MockOpportunities) Details(ctx context.Context, id uint64) (*opportunity.View, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*opportunity.View), args.Error(1)
}

func (m *MockOpportunities) Portfolio(ctx context.Context, investor string) ([]opportunity.PortfolioEntry, error) {
	args := m.Called(ctx, investor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]opportunity.PortfolioEntry), args.Error(1)
}

func (m *MockOpportunities) Refresh(ctx context.Context, investor string) error {
	return m.Called(ctx, investor).Error(0)
}

type MockMarket struct {
	mock.Mock
}

func (m *MockMarket) Overview(ctx context.Context) (*market.Overview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Overview), args.Error(1)
}

func (m *MockMarket) Stats(ctx context.Context) (*market.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Stats), args.Error(1)
}

func (m *MockMarket) Balance(ctx context.Context, address string) (*market.Balance, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Balance), args.Error(1)
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(address string) (string, time.Time, error) {
	return "token-for-" + address, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// =============================================================================
// Session
// =============================================================================

func TestSessionHandler_Connect(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		accounts   []string
		accountErr error
		wantStatus int
	}{
		{
			name:       "managed address",
			body:       `{"address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`,
			accounts:   []string{"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "address not in wallet",
			body:       `{"address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`,
			accounts:   []string{"0x1111111111111111111111111111111111111111"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "malformed address",
			body:       `{"address":"0x123"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wallet provider down",
			body:       `{"address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`,
			accountErr: errors.New("connection refused"),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := new(MockAccounts)
			if tt.accounts != nil || tt.accountErr != nil {
				accounts.On("Accounts", mock.Anything).Return(tt.accounts, tt.accountErr)
			}
			h := handler.NewSessionHandler(accounts, fakeTokens{}, testLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/session", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.Connect(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusCreated {
				var resp handler.SessionResponse
				decodeBody(t, rec, &resp)
				assert.Equal(t, wallet, resp.Address, "address is checksummed")
				assert.Equal(t, "token-for-"+wallet, resp.Token)
				assert.Equal(t, "2026-01-02T00:00:00Z", resp.ExpiresAt)
			}
		})
	}
}

func TestSessionHandler_Network(t *testing.T) {
	h := handler.NewSessionHandler(new(MockAccounts), fakeTokens{}, testLogger()).WithNetwork(handler.NetworkInfo{
		ChainID:                2810,
		ChainName:              "Morph Testnet",
		WalletConnectProjectID: "project",
	})

	rec := httptest.NewRecorder()
	h.Network(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session/network", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.NetworkInfo
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(2810), resp.ChainID)
	assert.Equal(t, "Morph Testnet", resp.ChainName)
	assert.Equal(t, "project", resp.WalletConnectProjectID)
}

// =============================================================================
// Investments
// =============================================================================

func TestInvestmentHandler_Invest_Accepted(t *testing.T) {
	investor := new(MockInvestor)
	flowID := uuid.New()
	investor.On("Start", mock.Anything, mock.MatchedBy(func(req invest.Request) bool {
		return req.Investor == wallet && req.InvoiceID == 7 && req.Amount.Equal(decimal.NewFromInt(2000))
	})).Return(flowID, nil)
	investor.On("State", wallet).Return(invest.StateChecking)

	h := handler.NewInvestmentHandler(investor, testLogger())
	req := withWallet(httptest.NewRequest(http.MethodPost, "/api/v1/investments", bytes.NewBufferString(`{"invoice_id":7,"amount":"2000"}`)))
	rec := httptest.NewRecorder()
	h.Invest(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp handler.InvestAcceptedResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, flowID.String(), resp.FlowID)
	assert.Equal(t, "checking", resp.State)
	investor.AssertExpectations(t)
}

func TestInvestmentHandler_Invest_DisplayAmount(t *testing.T) {
	investor := new(MockInvestor)
	investor.On("Start", mock.Anything, mock.MatchedBy(func(req invest.Request) bool {
		return req.Amount.Equal(decimal.RequireFromString("1234.57"))
	})).Return(uuid.New(), nil)
	investor.On("State", wallet).Return(invest.StateChecking)

	h := handler.NewInvestmentHandler(investor, testLogger())
	req := withWallet(httptest.NewRequest(http.MethodPost, "/api/v1/investments", bytes.NewBufferString(`{"invoice_id":7,"amount":"$1,234.57"}`)))
	rec := httptest.NewRecorder()
	h.Invest(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	investor.AssertExpectations(t)
}

func TestInvestmentHandler_Invest_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		startErr   error
		wantStatus int
	}{
		{name: "flow running", body: `{"invoice_id":7,"amount":100}`, startErr: invest.ErrFlowInProgress, wantStatus: http.StatusConflict},
		{name: "zero amount", body: `{"invoice_id":7,"amount":0}`, wantStatus: http.StatusBadRequest},
		{name: "missing invoice", body: `{"amount":100}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			investor := new(MockInvestor)
			if tt.startErr != nil {
				investor.On("Start", mock.Anything, mock.Anything).Return(uuid.Nil, tt.startErr)
			}
			h := handler.NewInvestmentHandler(investor, testLogger())

			req := withWallet(httptest.NewRequest(http.MethodPost, "/api/v1/investments", bytes.NewBufferString(tt.body)))
			rec := httptest.NewRecorder()
			h.Invest(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestInvestmentHandler_RequiresWallet(t *testing.T) {
	h := handler.NewInvestmentHandler(new(MockInvestor), testLogger())
	rec := httptest.NewRecorder()
	h.State(rec, httptest.NewRequest(http.MethodGet, "/api/v1/investments/state", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvestmentHandler_State(t *testing.T) {
	investor := new(MockInvestor)
	investor.On("State", wallet).Return(invest.StateApproving)
	h := handler.NewInvestmentHandler(investor, testLogger())

	rec := httptest.NewRecorder()
	h.State(rec, withWallet(httptest.NewRequest(http.MethodGet, "/api/v1/investments/state", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.StateResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "approving", resp.State)
	assert.True(t, resp.Busy)
}

func TestInvestmentHandler_Faucet(t *testing.T) {
	investor := new(MockInvestor)
	investor.On("MintTestFunds", mock.Anything, wallet).Return(&invest.MintResult{Amount: decimal.NewFromInt(10000), TxHash: "0xmint"}, nil).Once()
	investor.On("MintTestFunds", mock.Anything, wallet).Return(nil, apperrors.UserRejected(errors.New("denied"))).Once()
	h := handler.NewInvestmentHandler(investor, testLogger())

	rec := httptest.NewRecorder()
	h.Faucet(rec, withWallet(httptest.NewRequest(http.MethodPost, "/api/v1/faucet", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.FaucetResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "10000", resp.Amount)
	assert.Equal(t, "0xmint", resp.TxHash)

	rec = httptest.NewRecorder()
	h.Faucet(rec, withWallet(httptest.NewRequest(http.MethodPost, "/api/v1/faucet", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp handler.ErrorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, apperrors.ErrCodeUserRejected, errResp.Code)
	assert.Equal(t, apperrors.MsgUserRejected, errResp.Error)
}

// =============================================================================
// Opportunities
// =============================================================================

func TestOpportunityHandler_List(t *testing.T) {
	svc := new(MockOpportunities)
	svc.On("Opportunities", mock.Anything).Return(nil, nil)
	h := handler.NewOpportunityHandler(svc)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"opportunities":[],"count":0}`, rec.Body.String())
}

func TestOpportunityHandler_Get(t *testing.T) {
	svc := new(MockOpportunities)
	svc.On("Details", mock.Anything, uint64(7)).Return(&opportunity.View{ID: 7, Commodity: "COFFEE"}, nil)
	svc.On("Details", mock.Anything, uint64(8)).Return(nil, apperrors.NotFound("invoice"))

	r := chi.NewRouter()
	r.Get("/opportunities/{id}", handler.NewOpportunityHandler(svc).Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opportunities/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view opportunity.View
	decodeBody(t, rec, &view)
	assert.Equal(t, "COFFEE", view.Commodity)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opportunities/8", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opportunities/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpportunityHandler_PortfolioAndRefresh(t *testing.T) {
	svc := new(MockOpportunities)
	svc.On("Portfolio", mock.Anything, wallet).Return([]opportunity.PortfolioEntry{{View: opportunity.View{ID: 3}}}, nil)
	svc.On("Refresh", mock.Anything, wallet).Return(nil)
	h := handler.NewOpportunityHandler(svc)

	rec := httptest.NewRecorder()
	h.Portfolio(rec, withWallet(httptest.NewRequest(http.MethodGet, "/api/v1/portfolio", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.PortfolioResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, uint64(3), resp.Investments[0].ID)

	rec = httptest.NewRecorder()
	h.Refresh(rec, withWallet(httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

// =============================================================================
// Market
// =============================================================================

func TestMarketHandler_Balance(t *testing.T) {
	svc := new(MockMarket)
	svc.On("Balance", mock.Anything, wallet).Return(&market.Balance{Address: wallet, USDC: decimal.NewFromInt(50), Formatted: "50 USDC"}, nil)
	h := handler.NewMarketHandler(svc)

	rec := httptest.NewRecorder()
	h.Balance(rec, withWallet(httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp market.Balance
	decodeBody(t, rec, &resp)
	assert.Equal(t, "50 USDC", resp.Formatted)
}

func TestMarketHandler_StatsUnavailable(t *testing.T) {
	svc := new(MockMarket)
	svc.On("Stats", mock.Anything).Return(nil, apperrors.TransportFailure("Protocol stats are unavailable", errors.New("rpc")))
	h := handler.NewMarketHandler(svc)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp handler.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, apperrors.ErrCodeTransportFailure, resp.Code)
}

// =============================================================================
// Status board
// =============================================================================

func TestStatusHandler_ListAndDismiss(t *testing.T) {
	board := status.NewBoard(nil, time.Minute, testLogger())
	entry := board.Push(wallet, status.KindError, "Transaction was cancelled by user", "")

	r := chi.NewRouter()
	h := handler.NewStatusHandler(board)
	r.Get("/status", h.List)
	r.Delete("/status/{id}", h.Dismiss)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, withWallet(httptest.NewRequest(http.MethodGet, "/status", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var list handler.StatusListResponse
	decodeBody(t, rec, &list)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, entry.ID, list.Entries[0].ID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, withWallet(httptest.NewRequest(http.MethodDelete, "/status/"+entry.ID.String(), nil)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, withWallet(httptest.NewRequest(http.MethodDelete, "/status/"+entry.ID.String(), nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, withWallet(httptest.NewRequest(http.MethodDelete, "/status/nope", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Health
// =============================================================================

func TestHealthHandler_Readiness(t *testing.T) {
	ready := handler.NewHealthHandler(map[string]handler.Pinger{"chain_rpc": pinger{}, "redis": pinger{}})
	rec := httptest.NewRecorder()
	ready.GetReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := handler.NewHealthHandler(map[string]handler.Pinger{"chain_rpc": pinger{}, "redis": pinger{err: errors.New("refused")}})
	rec = httptest.NewRecorder()
	degraded.GetReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp handler.HealthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["chain_rpc"])
	assert.Equal(t, "unhealthy: refused", resp.Checks["redis"])
}
