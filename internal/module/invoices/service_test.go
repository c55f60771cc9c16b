package invoices_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/module/invoices"
	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/module/status"
	"github.com/earnx/earnx/internal/platform/contract"
	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/pkg/logger"
)

const (
	supplierAddr = "0x2222222222222222222222222222222222222222"
	buyerAddr    = "0x3333333333333333333333333333333333333333"
	operatorAddr = "0x4444444444444444444444444444444444444444"
)

// =============================================================================
// Mock Chain
// =============================================================================

type MockChain struct {
	mock.Mock
}

func (m *MockChain) AllInvoices(ctx context.Context) []uint64 {
	return m.Called(ctx).Get(0).([]uint64)
}

func (m *MockChain) InvoicesByStatus(ctx context.Context, st invoice.Status) []uint64 {
	return m.Called(ctx, st).Get(0).([]uint64)
}

func (m *MockChain) SupplierInvoices(ctx context.Context, supplier string) []uint64 {
	return m.Called(ctx, supplier).Get(0).([]uint64)
}

func (m *MockChain) InvoiceBasics(ctx context.Context, id uint64) invoice.Field[invoice.Basics] {
	return m.Called(ctx, id).Get(0).(invoice.Field[invoice.Basics])
}

func (m *MockChain) InvoiceParties(ctx context.Context, id uint64) invoice.Field[invoice.Parties] {
	return m.Called(ctx, id).Get(0).(invoice.Field[invoice.Parties])
}

func (m *MockChain) InvoiceLocations(ctx context.Context, id uint64) invoice.Field[invoice.Locations] {
	return m.Called(ctx, id).Get(0).(invoice.Field[invoice.Locations])
}

func (m *MockChain) InvoiceStatus(ctx context.Context, id uint64) invoice.Field[invoice.Status] {
	return m.Called(ctx, id).Get(0).(invoice.Field[invoice.Status])
}

func (m *MockChain) IsInvoiceVerified(ctx context.Context, id uint64) invoice.Field[bool] {
	return m.Called(ctx, id).Get(0).(invoice.Field[bool])
}

func (m *MockChain) LastFunctionsResponse(ctx context.Context) invoice.Field[invoice.FunctionsResponse] {
	return m.Called(ctx).Get(0).(invoice.Field[invoice.FunctionsResponse])
}

func (m *MockChain) SubmitInvoice(ctx context.Context, from string, s invoice.Submission) contract.TxResult {
	return m.Called(ctx, from, s).Get(0).(contract.TxResult)
}

func (m *MockChain) StartVerification(ctx context.Context, from string, r invoice.VerificationRequest) contract.TxResult {
	return m.Called(ctx, from, r).Get(0).(contract.TxResult)
}

func (m *MockChain) InitializeProtocol(ctx context.Context, from string) contract.TxResult {
	return m.Called(ctx, from).Get(0).(contract.TxResult)
}

func (m *MockChain) UpdateLivePrices(ctx context.Context, from string) contract.TxResult {
	return m.Called(ctx, from).Get(0).(contract.TxResult)
}

func (m *MockChain) TestDirectRequest(ctx context.Context, from string) contract.TxResult {
	return m.Called(ctx, from).Get(0).(contract.TxResult)
}

func (m *MockChain) WaitForReceipt(ctx context.Context, hash string) (*evm.Receipt, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evm.Receipt), args.Error(1)
}

// =============================================================================
// Fakes
// =============================================================================

type fakeViews struct {
	built [][]uint64
}

func (f *fakeViews) Build(_ context.Context, ids []uint64) ([]opportunity.View, error) {
	f.built = append(f.built, ids)
	views := make([]opportunity.View, len(ids))
	for i, id := range ids {
		views[i] = opportunity.View{ID: id}
	}
	return views, nil
}

type pushed struct {
	address string
	kind    status.Kind
	message string
	txHash  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	entries []pushed
}

func (n *recordingNotifier) Push(address string, kind status.Kind, message, txHash string) status.Entry {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, pushed{address, kind, message, txHash})
	return status.Entry{Type: kind, Message: message, TxHash: txHash}
}

func (n *recordingNotifier) kinds() []status.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]status.Kind, len(n.entries))
	for i, e := range n.entries {
		out[i] = e.kind
	}
	return out
}

type invalidation struct {
	investor string
	ids      []uint64
}

type recordingInvalidator struct {
	calls []invalidation
}

func (r *recordingInvalidator) Invalidate(_ context.Context, investor string, ids ...uint64) {
	r.calls = append(r.calls, invalidation{investor, ids})
}

type fixture struct {
	chain       *MockChain
	views       *fakeViews
	notifier    *recordingNotifier
	invalidator *recordingInvalidator
	svc         *invoices.Service
}

func newFixture() *fixture {
	f := &fixture{
		chain:       new(MockChain),
		views:       &fakeViews{},
		notifier:    &recordingNotifier{},
		invalidator: &recordingInvalidator{},
	}
	f.svc = invoices.NewService(f.chain, f.views, f.notifier, f.invalidator, logger.New("development", io.Discard))
	return f
}

func mined(hash string) *evm.Receipt {
	return &evm.Receipt{TransactionHash: hash, BlockNumber: "0x2a", Status: "0x1"}
}

func validSubmission() invoices.Submission {
	return invoices.Submission{
		Buyer:           buyerAddr,
		Amount:          decimal.RequireFromString("25000.50"),
		Commodity:       "COFFEE",
		SupplierCountry: "Kenya",
		BuyerCountry:    "Germany",
		ExporterName:    "Nairobi Roasters",
		BuyerName:       "Hamburg Imports",
		DueDate:         time.Now().Add(90 * 24 * time.Hour),
		DocumentHash:    "QmDocs",
	}
}

// =============================================================================
// Reads
// =============================================================================

func TestService_ListAll(t *testing.T) {
	f := newFixture()
	f.chain.On("AllInvoices", mock.Anything).Return([]uint64{3, 1, 2})

	views, err := f.svc.List(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, []uint64{3, 1, 2}, f.views.built[0])
	f.chain.AssertNotCalled(t, "InvoicesByStatus", mock.Anything, mock.Anything)
}

func TestService_ListByStatus(t *testing.T) {
	f := newFixture()
	verified := invoice.StatusVerified
	f.chain.On("InvoicesByStatus", mock.Anything, invoice.StatusVerified).Return([]uint64{7})

	views, err := f.svc.List(context.Background(), &verified)

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(7), views[0].ID)
	f.chain.AssertNotCalled(t, "AllInvoices", mock.Anything)
}

func TestService_Supplied(t *testing.T) {
	f := newFixture()
	f.chain.On("SupplierInvoices", mock.Anything, supplierAddr).Return([]uint64{4, 5})

	views, err := f.svc.Supplied(context.Background(), supplierAddr)

	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestService_Supplied_InvalidAddress(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Supplied(context.Background(), "0x123")

	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	f.chain.AssertNotCalled(t, "SupplierInvoices", mock.Anything, mock.Anything)
}

func TestService_Status(t *testing.T) {
	f := newFixture()
	f.chain.On("InvoiceStatus", mock.Anything, uint64(9)).Return(invoice.Loaded(invoice.StatusFullyFunded))
	f.chain.On("IsInvoiceVerified", mock.Anything, uint64(9)).Return(invoice.Loaded(true))

	report, err := f.svc.Status(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, invoice.StatusFullyFunded, report.Status)
	require.NotNil(t, report.Verified)
	assert.True(t, *report.Verified)
}

func TestService_Status_UnknownVerificationStaysNil(t *testing.T) {
	f := newFixture()
	f.chain.On("InvoiceStatus", mock.Anything, uint64(9)).Return(invoice.Loaded(invoice.StatusSubmitted))
	f.chain.On("IsInvoiceVerified", mock.Anything, uint64(9)).Return(invoice.Unavailable[bool](errors.New("rpc down")))

	report, err := f.svc.Status(context.Background(), 9)

	require.NoError(t, err)
	assert.Nil(t, report.Verified)
}

func TestService_Status_Unavailable(t *testing.T) {
	f := newFixture()
	f.chain.On("InvoiceStatus", mock.Anything, uint64(9)).Return(invoice.Unavailable[invoice.Status](errors.New("rpc down")))
	f.chain.On("IsInvoiceVerified", mock.Anything, uint64(9)).Return(invoice.Loaded(false))

	_, err := f.svc.Status(context.Background(), 9)

	assert.Equal(t, apperrors.ErrCodeTransportFailure, apperrors.CodeOf(err))
}

func TestService_OracleResponse(t *testing.T) {
	f := newFixture()
	var reqID [32]byte
	reqID[31] = 0xab
	f.chain.On("LastFunctionsResponse", mock.Anything).Return(invoice.Loaded(invoice.FunctionsResponse{
		RequestID: reqID,
		Response:  []byte("VALID|15|A"),
	}))

	out, err := f.svc.OracleResponse(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000000ab", out.RequestID)
	assert.Equal(t, "VALID|15|A", out.Response)
	assert.Equal(t, "0x56414c49447c31357c41", out.ResponseHex)
	assert.Empty(t, out.Error)
}

func TestService_OracleResponse_BinaryPayload(t *testing.T) {
	f := newFixture()
	f.chain.On("LastFunctionsResponse", mock.Anything).Return(invoice.Loaded(invoice.FunctionsResponse{
		Response: []byte{0xff, 0xfe},
		Error:    []byte("source failed"),
	}))

	out, err := f.svc.OracleResponse(context.Background())

	require.NoError(t, err)
	assert.Empty(t, out.Response)
	assert.Equal(t, "0xfffe", out.ResponseHex)
	assert.Equal(t, "source failed", out.Error)
}

// =============================================================================
// Submit
// =============================================================================

func TestService_Submit(t *testing.T) {
	f := newFixture()
	sub := validSubmission()
	f.chain.On("SubmitInvoice", mock.Anything, supplierAddr, sub).Return(contract.TxResult{Success: true, TxHash: "0xsubmit"})
	f.chain.On("WaitForReceipt", mock.Anything, "0xsubmit").Return(mined("0xsubmit"), nil)

	out, err := f.svc.Submit(context.Background(), supplierAddr, sub)

	require.NoError(t, err)
	assert.Equal(t, "0xsubmit", out.TxHash)
	assert.Equal(t, uint64(42), out.Block)
	assert.Equal(t, []status.Kind{status.KindInfo, status.KindSuccess}, f.notifier.kinds())
	assert.Equal(t, "0xsubmit", f.notifier.entries[1].txHash)
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*invoices.Submission)
	}{
		{"bad buyer", func(s *invoices.Submission) { s.Buyer = "buyer" }},
		{"buyer is supplier", func(s *invoices.Submission) { s.Buyer = supplierAddr }},
		{"zero amount", func(s *invoices.Submission) { s.Amount = decimal.Zero }},
		{"too many decimals", func(s *invoices.Submission) { s.Amount = decimal.RequireFromString("1.0000001") }},
		{"unknown commodity", func(s *invoices.Submission) { s.Commodity = "GOLD" }},
		{"unsupported country", func(s *invoices.Submission) { s.SupplierCountry = "France" }},
		{"missing buyer name", func(s *invoices.Submission) { s.BuyerName = "  " }},
		{"missing document", func(s *invoices.Submission) { s.DocumentHash = "" }},
		{"past due date", func(s *invoices.Submission) { s.DueDate = time.Now().Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			sub := validSubmission()
			tt.mutate(&sub)

			_, err := f.svc.Submit(context.Background(), supplierAddr, sub)

			assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
			f.chain.AssertNotCalled(t, "SubmitInvoice", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Submit_UserRejected(t *testing.T) {
	f := newFixture()
	sub := validSubmission()
	f.chain.On("SubmitInvoice", mock.Anything, supplierAddr, sub).
		Return(contract.TxResult{Err: apperrors.UserRejected(errors.New("denied"))})

	_, err := f.svc.Submit(context.Background(), supplierAddr, sub)

	assert.Equal(t, apperrors.ErrCodeUserRejected, apperrors.CodeOf(err))
	assert.Equal(t, []status.Kind{status.KindInfo, status.KindError}, f.notifier.kinds())
	f.chain.AssertNotCalled(t, "WaitForReceipt", mock.Anything, mock.Anything)
}

func TestService_Submit_WaitSurvivesCallerCancel(t *testing.T) {
	f := newFixture()
	sub := validSubmission()
	ctx, cancel := context.WithCancel(context.Background())

	f.chain.On("SubmitInvoice", mock.Anything, supplierAddr, sub).
		Run(func(mock.Arguments) { cancel() }).
		Return(contract.TxResult{Success: true, TxHash: "0xsubmit"})
	f.chain.On("WaitForReceipt", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "0xsubmit").
		Return(mined("0xsubmit"), nil)

	out, err := f.svc.Submit(ctx, supplierAddr, sub)

	require.NoError(t, err)
	assert.Equal(t, "0xsubmit", out.TxHash)
}

// =============================================================================
// Verification
// =============================================================================

func onInvoice(f *fixture, st invoice.Status, supplier string) {
	f.chain.On("InvoiceBasics", mock.Anything, uint64(5)).Return(invoice.Loaded(invoice.Basics{
		ID: 5, Supplier: supplier, Amount: decimal.RequireFromString("25000.75"), Status: st,
	}))
	f.chain.On("InvoiceParties", mock.Anything, uint64(5)).Return(invoice.Loaded(invoice.Parties{
		Buyer: buyerAddr, ExporterName: "Nairobi Roasters", BuyerName: "Hamburg Imports", Commodity: "COFFEE",
	}))
	f.chain.On("InvoiceLocations", mock.Anything, uint64(5)).Return(invoice.Loaded(invoice.Locations{
		SupplierCountry: "Kenya", BuyerCountry: "Germany",
	}))
}

func TestService_StartVerification(t *testing.T) {
	f := newFixture()
	onInvoice(f, invoice.StatusSubmitted, supplierAddr)

	want := invoice.VerificationRequest{
		InvoiceID:       5,
		DocumentHash:    "QmDocs",
		Commodity:       "COFFEE",
		Amount:          25000,
		SupplierCountry: "Kenya",
		BuyerCountry:    "Germany",
		ExporterName:    "Nairobi Roasters",
		BuyerName:       "Hamburg Imports",
	}
	f.chain.On("StartVerification", mock.Anything, supplierAddr, want).Return(contract.TxResult{Success: true, TxHash: "0xverify"})
	f.chain.On("WaitForReceipt", mock.Anything, "0xverify").Return(mined("0xverify"), nil)

	out, err := f.svc.StartVerification(context.Background(), supplierAddr, 5, " QmDocs ")

	require.NoError(t, err)
	assert.Equal(t, "0xverify", out.TxHash)
	require.Len(t, f.invalidator.calls, 1)
	assert.Equal(t, []uint64{5}, f.invalidator.calls[0].ids)
}

func TestService_StartVerification_NotSupplier(t *testing.T) {
	f := newFixture()
	onInvoice(f, invoice.StatusSubmitted, supplierAddr)

	_, err := f.svc.StartVerification(context.Background(), buyerAddr, 5, "QmDocs")

	assert.Equal(t, apperrors.ErrCodePreconditionFailed, apperrors.CodeOf(err))
	f.chain.AssertNotCalled(t, "StartVerification", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_StartVerification_AlreadyFunded(t *testing.T) {
	f := newFixture()
	onInvoice(f, invoice.StatusFunded, supplierAddr)

	_, err := f.svc.StartVerification(context.Background(), supplierAddr, 5, "QmDocs")

	assert.Equal(t, apperrors.ErrCodePreconditionFailed, apperrors.CodeOf(err))
	assert.Empty(t, f.invalidator.calls)
}

func TestService_StartVerification_MissingHash(t *testing.T) {
	f := newFixture()

	_, err := f.svc.StartVerification(context.Background(), supplierAddr, 5, " ")

	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	f.chain.AssertNotCalled(t, "InvoiceBasics", mock.Anything, mock.Anything)
}

func TestService_StartVerification_Reverted(t *testing.T) {
	f := newFixture()
	onInvoice(f, invoice.StatusVerifying, supplierAddr)
	f.chain.On("StartVerification", mock.Anything, supplierAddr, mock.Anything).Return(contract.TxResult{Success: true, TxHash: "0xverify"})
	f.chain.On("WaitForReceipt", mock.Anything, "0xverify").
		Return(nil, apperrors.ContractRevert("Verification pending", nil))

	_, err := f.svc.StartVerification(context.Background(), supplierAddr, 5, "QmDocs")

	assert.Equal(t, apperrors.ErrCodeContractRevert, apperrors.CodeOf(err))
	assert.Equal(t, []status.Kind{status.KindInfo, status.KindError}, f.notifier.kinds())
	assert.Empty(t, f.invalidator.calls)
}

// =============================================================================
// Maintenance
// =============================================================================

func TestService_Maintenance(t *testing.T) {
	tests := []struct {
		name   string
		method string
		call   func(*invoices.Service) (*invoices.TxOutcome, error)
	}{
		{"refresh prices", "UpdateLivePrices", func(s *invoices.Service) (*invoices.TxOutcome, error) {
			return s.RefreshPrices(context.Background(), operatorAddr)
		}},
		{"initialize", "InitializeProtocol", func(s *invoices.Service) (*invoices.TxOutcome, error) {
			return s.InitializeProtocol(context.Background(), operatorAddr)
		}},
		{"test request", "TestDirectRequest", func(s *invoices.Service) (*invoices.TxOutcome, error) {
			return s.TestVerification(context.Background(), operatorAddr)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.chain.On(tt.method, mock.Anything, operatorAddr).Return(contract.TxResult{Success: true, TxHash: "0xop"})
			f.chain.On("WaitForReceipt", mock.Anything, "0xop").Return(mined("0xop"), nil)

			out, err := tt.call(f.svc)

			require.NoError(t, err)
			assert.Equal(t, "0xop", out.TxHash)
			f.chain.AssertExpectations(t)
		})
	}
}

func TestService_Maintenance_InvalidOperator(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RefreshPrices(context.Background(), "operator")

	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	f.chain.AssertNotCalled(t, "UpdateLivePrices", mock.Anything, mock.Anything)
}
