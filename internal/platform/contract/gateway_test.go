package contract

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/pkg/config"
	"github.com/earnx/earnx/pkg/logger"
)

const (
	investor = "0x1111111111111111111111111111111111111111"
	supplier = "0x2222222222222222222222222222222222222222"
)

// fakeChain answers calls by method selector
type fakeChain struct {
	mu       sync.Mutex
	results  map[string][]byte
	failures map[string]error
	receipts []*evm.Receipt
	sent     []evm.TxRequest
	sendErr  error
}

func newFakeChain() *fakeChain {
	return &fakeChain{results: map[string][]byte{}, failures: map[string]error{}}
}

func (f *fakeChain) on(m evm.Method, out ...interface{}) {
	data, err := evm.EncodeArgs(m.Outputs, out)
	if err != nil {
		panic(err)
	}
	f.results[hex.EncodeToString(m.Selector())] = data
}

func (f *fakeChain) fail(m evm.Method, err error) {
	f.failures[hex.EncodeToString(m.Selector())] = err
}

func (f *fakeChain) Call(_ context.Context, msg evm.CallMsg) ([]byte, error) {
	key := hex.EncodeToString(msg.Data[:4])
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	return f.results[key], nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, _ string) (*evm.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.receipts) == 0 {
		return nil, nil
	}
	r := f.receipts[0]
	f.receipts = f.receipts[1:]
	return r, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx evm.TxRequest) (string, error) {
	f.sent = append(f.sent, tx)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "0xabc", nil
}

func newTestGateway(chain *fakeChain, policy ReceiptPolicy) *Gateway {
	return NewGateway(chain, chain, config.DefaultChainsConfig().Chains[0].Contracts, policy, logger.New("development", io.Discard))
}

func fastPolicy() ReceiptPolicy {
	return ReceiptPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Timeout: 100 * time.Millisecond}
}

func TestGateway_InvoiceFinancials_Scaling(t *testing.T) {
	chain := newFakeChain()
	due := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	chain.on(mGetInvoiceFinancials, big.NewInt(50_000_000_000), big.NewInt(12_500_500_000), big.NewInt(1250), big.NewInt(due.Unix()))
	g := newTestGateway(chain, fastPolicy())

	field := g.InvoiceFinancials(context.Background(), 7)
	f, ok := field.Get()
	require.True(t, ok)
	assert.Equal(t, "50000", f.TargetFunding.String())
	assert.Equal(t, "12500.5", f.CurrentFunding.String())
	assert.Equal(t, int64(1250), f.APRBasisPoints)
	assert.True(t, due.Equal(f.DueDate))
}

func TestGateway_InvoiceBasics(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetInvoiceBasics, big.NewInt(7), supplier, big.NewInt(2_000_000), uint8(invoice.StatusVerified))
	g := newTestGateway(chain, fastPolicy())

	b, ok := g.InvoiceBasics(context.Background(), 7).Get()
	require.True(t, ok)
	assert.Equal(t, uint64(7), b.ID)
	assert.True(t, evm.AddressesEqual(supplier, b.Supplier))
	assert.Equal(t, "2", b.Amount.String())
	assert.Equal(t, invoice.StatusVerified, b.Status)
}

func TestGateway_LatestPrices_Scaling(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetLatestPrices, big.NewInt(325_012_000_000), big.NewInt(100_000_000), big.NewInt(6_500_000_000_000), big.NewInt(1_525_000_000), big.NewInt(1_700_000_000))
	chain.on(mCalculateMarketVolatility, big.NewInt(350))
	g := newTestGateway(chain, fastPolicy())

	p, ok := g.LatestPrices(context.Background()).Get()
	require.True(t, ok)
	assert.Equal(t, "3250.12", p.ETH.String())
	assert.Equal(t, "1", p.USDC.String())
	assert.Equal(t, "65000", p.BTC.String())
	assert.Equal(t, "15.25", p.LINK.String())

	vol, ok := g.MarketVolatility(context.Background()).Get()
	require.True(t, ok)
	assert.Equal(t, "3.5", vol.String())
}

func TestGateway_ReadFailureIsUnavailable(t *testing.T) {
	chain := newFakeChain()
	rpcDown := errors.New("connection refused")
	chain.fail(mBalanceOf, rpcDown)
	g := newTestGateway(chain, fastPolicy())

	balance := g.TokenBalance(context.Background(), investor)
	assert.Equal(t, invoice.FieldUnavailable, balance.State())
	assert.ErrorIs(t, balance.Err(), rpcDown)

	// no canned data means the call returns nothing
	stats := g.ProtocolStats(context.Background())
	assert.Equal(t, invoice.FieldUnavailable, stats.State())
	assert.ErrorIs(t, stats.Err(), ErrEmptyReturn)
}

func TestGateway_ListReadsDegradeToEmpty(t *testing.T) {
	chain := newFakeChain()
	chain.fail(mGetInvestmentOpportunities, errors.New("boom"))
	chain.on(mGetInvestorInvoices, []*big.Int{big.NewInt(3), big.NewInt(9)})
	g := newTestGateway(chain, fastPolicy())

	assert.Empty(t, g.Opportunities(context.Background()))
	assert.NotNil(t, g.Opportunities(context.Background()))
	assert.Equal(t, []uint64{3, 9}, g.InvestorInvoices(context.Background(), investor))
}

func TestGateway_InvestorAmountAndAllowance(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetInvestorData, big.NewInt(1_500_250_000))
	chain.on(mAllowance, big.NewInt(0))
	g := newTestGateway(chain, fastPolicy())

	amount, ok := g.InvestorAmount(context.Background(), investor, 1).Get()
	require.True(t, ok)
	assert.Equal(t, "1500.25", amount.String())

	allowance := g.Allowance(context.Background(), investor, g.ProtocolAddress())
	require.True(t, allowance.IsLoaded())
	assert.True(t, allowance.OrElse(decimal.NewFromInt(1)).IsZero())
}

func TestGateway_Invest_EncodesBaseUnits(t *testing.T) {
	chain := newFakeChain()
	g := newTestGateway(chain, fastPolicy())

	res := g.Invest(context.Background(), investor, 7, decimal.NewFromInt(2000))
	require.True(t, res.Success)
	assert.Equal(t, "0xabc", res.TxHash)
	assert.NoError(t, res.Error())

	require.Len(t, chain.sent, 1)
	tx := chain.sent[0]
	assert.Equal(t, g.ProtocolAddress(), tx.To)
	assert.Equal(t, investor, tx.From)

	args, err := evm.DecodeValues(mInvestInInvoice.Inputs, tx.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, "7", args[0].(*big.Int).String())
	assert.Equal(t, "2000000000", args[1].(*big.Int).String())
}

func TestGateway_WriteClassifiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{
			name:    "user rejected",
			err:     &evm.RPCError{Code: evm.CodeUserRejected, Message: "User denied transaction signature"},
			code:    apperrors.ErrCodeUserRejected,
			message: apperrors.MsgUserRejected,
		},
		{
			name:    "revert reason",
			err:     &evm.RPCError{Code: evm.CodeExecutionReverted, Message: "execution reverted: Invoice not verified"},
			code:    apperrors.ErrCodeContractRevert,
			message: "Contract error: Invoice not verified",
		},
		{
			name:    "token allowance revert",
			err:     &evm.RPCError{Code: evm.CodeExecutionReverted, Message: "execution reverted: ERC20: insufficient allowance"},
			code:    apperrors.ErrCodeInsufficientAllowance,
			message: apperrors.MsgAllowanceTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.sendErr = tt.err
			g := newTestGateway(chain, fastPolicy())

			res := g.Approve(context.Background(), investor, g.ProtocolAddress(), decimal.NewFromInt(50000))
			assert.False(t, res.Success)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.code, res.Err.Code)
			assert.Equal(t, tt.message, res.Err.Message)
		})
	}
}

func TestGateway_WaitForReceipt(t *testing.T) {
	t.Run("confirms after pending polls", func(t *testing.T) {
		chain := newFakeChain()
		chain.receipts = []*evm.Receipt{nil, nil, {TransactionHash: "0xabc", BlockNumber: "0x10", Status: "0x1"}}
		g := newTestGateway(chain, fastPolicy())

		r, err := g.WaitForReceipt(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Equal(t, uint64(16), r.Block())
	})

	t.Run("reverted receipt", func(t *testing.T) {
		chain := newFakeChain()
		chain.receipts = []*evm.Receipt{{TransactionHash: "0xabc", Status: "0x0"}}
		g := newTestGateway(chain, fastPolicy())

		_, err := g.WaitForReceipt(context.Background(), "0xabc")
		assert.Equal(t, apperrors.ErrCodeContractRevert, apperrors.CodeOf(err))
	})

	t.Run("times out", func(t *testing.T) {
		chain := newFakeChain()
		g := newTestGateway(chain, fastPolicy())

		_, err := g.WaitForReceipt(context.Background(), "0xabc")
		assert.Equal(t, apperrors.ErrCodeTimedOut, apperrors.CodeOf(err))
	})
}

func TestGateway_ProtocolStats_Scaling(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetProtocolStats, big.NewInt(12), big.NewInt(1_234_567_890_000), big.NewInt(3), big.NewInt(5), big.NewInt(4))
	g := newTestGateway(chain, fastPolicy())

	s, ok := g.ProtocolStats(context.Background()).Get()
	require.True(t, ok)
	assert.Equal(t, int64(12), s.TotalInvoices)
	assert.Equal(t, "1234567.89", s.TotalFundsRaised.String())
	assert.Equal(t, int64(3), s.PendingInvoices)
	assert.Equal(t, int64(5), s.VerifiedInvoices)
	assert.Equal(t, int64(4), s.FundedInvoices)
}

func TestGateway_TokenBalance_Scaling(t *testing.T) {
	chain := newFakeChain()
	chain.on(mBalanceOf, big.NewInt(10_000_000_001))
	g := newTestGateway(chain, fastPolicy())

	balance, ok := g.TokenBalance(context.Background(), investor).Get()
	require.True(t, ok)
	assert.Equal(t, "10000.000001", balance.String())
}

func TestGateway_InvestmentBasics_Scaling(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetInvestmentBasics, big.NewInt(40_000_000_000), big.NewInt(10_000_250_000), big.NewInt(29_999_750_000), big.NewInt(6))
	g := newTestGateway(chain, fastPolicy())

	b, ok := g.InvestmentBasics(context.Background(), 3).Get()
	require.True(t, ok)
	assert.Equal(t, "40000", b.TargetFunding.String())
	assert.Equal(t, "10000.25", b.CurrentFunding.String())
	assert.Equal(t, "29999.75", b.RemainingFunding.String())
	assert.Equal(t, int64(6), b.NumInvestors)
}

func TestGateway_InvoiceMetadata_Scaling(t *testing.T) {
	chain := newFakeChain()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chain.on(mGetInvoiceMetadata, big.NewInt(created.Unix()), true, big.NewInt(750_500_000))
	g := newTestGateway(chain, fastPolicy())

	m, ok := g.InvoiceMetadata(context.Background(), 3).Get()
	require.True(t, ok)
	assert.True(t, created.Equal(m.CreatedAt))
	assert.True(t, m.DocumentVerified)
	assert.Equal(t, "750.5", m.RemainingFunding.String())
}

func TestGateway_InvoiceBasics_FractionalAmount(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetInvoiceBasics, big.NewInt(8), supplier, big.NewInt(25_000_750_000), uint8(invoice.StatusSubmitted))
	g := newTestGateway(chain, fastPolicy())

	b, ok := g.InvoiceBasics(context.Background(), 8).Get()
	require.True(t, ok)
	assert.Equal(t, "25000.75", b.Amount.String())
	assert.Equal(t, int64(25000), b.Amount.IntPart())
}

func TestGateway_Approve_EncodesBaseUnits(t *testing.T) {
	chain := newFakeChain()
	g := newTestGateway(chain, fastPolicy())

	res := g.Approve(context.Background(), investor, g.ProtocolAddress(), decimal.RequireFromString("6000.5"))
	require.True(t, res.Success)

	require.Len(t, chain.sent, 1)
	tx := chain.sent[0]
	assert.Equal(t, g.contracts.USDC, tx.To)
	assert.Equal(t, mApprove.Selector(), tx.Data[:4])

	args, err := evm.DecodeValues(mApprove.Inputs, tx.Data[4:])
	require.NoError(t, err)
	assert.True(t, evm.AddressesEqual(g.ProtocolAddress(), args[0].(string)))
	assert.Equal(t, "6000500000", args[1].(*big.Int).String())
}

func TestGateway_Mint_EncodesBaseUnits(t *testing.T) {
	chain := newFakeChain()
	g := newTestGateway(chain, fastPolicy())

	res := g.Mint(context.Background(), investor, investor, decimal.NewFromInt(10000))
	require.True(t, res.Success)

	tx := chain.sent[0]
	assert.Equal(t, g.contracts.USDC, tx.To)

	args, err := evm.DecodeValues(mMint.Inputs, tx.Data[4:])
	require.NoError(t, err)
	assert.True(t, evm.AddressesEqual(investor, args[0].(string)))
	assert.Equal(t, "10000000000", args[1].(*big.Int).String())
}

func TestGateway_SubmitInvoice_EncodesArguments(t *testing.T) {
	chain := newFakeChain()
	g := newTestGateway(chain, fastPolicy())
	due := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)

	res := g.SubmitInvoice(context.Background(), supplier, invoice.Submission{
		Buyer:           investor,
		Amount:          decimal.RequireFromString("25000.5"),
		Commodity:       "COFFEE",
		SupplierCountry: "Kenya",
		BuyerCountry:    "Germany",
		ExporterName:    "Nairobi Roasters",
		BuyerName:       "Hamburg Imports",
		DueDate:         due,
		DocumentHash:    "QmDocs",
	})
	require.True(t, res.Success)

	tx := chain.sent[0]
	assert.Equal(t, g.ProtocolAddress(), tx.To)
	assert.Equal(t, supplier, tx.From)

	args, err := evm.DecodeValues(mSubmitInvoice.Inputs, tx.Data[4:])
	require.NoError(t, err)
	assert.True(t, evm.AddressesEqual(investor, args[0].(string)))
	assert.Equal(t, "25000500000", args[1].(*big.Int).String())
	assert.Equal(t, []interface{}{"COFFEE", "Kenya", "Germany", "Nairobi Roasters", "Hamburg Imports"}, args[2:7])
	assert.Equal(t, due.Unix(), args[7].(*big.Int).Int64())
	assert.Equal(t, "QmDocs", args[8])
}

func TestGateway_StartVerification_EncodesArguments(t *testing.T) {
	chain := newFakeChain()
	g := newTestGateway(chain, fastPolicy())

	res := g.StartVerification(context.Background(), supplier, invoice.VerificationRequest{
		InvoiceID:       8,
		DocumentHash:    "QmDocs",
		Commodity:       "COFFEE",
		Amount:          25000,
		SupplierCountry: "Kenya",
		BuyerCountry:    "Germany",
		ExporterName:    "Nairobi Roasters",
		BuyerName:       "Hamburg Imports",
	})
	require.True(t, res.Success)

	tx := chain.sent[0]
	assert.Equal(t, g.contracts.VerificationModule, tx.To)

	args, err := evm.DecodeValues(mStartDocumentVerification.Inputs, tx.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, "8", args[0].(*big.Int).String())
	assert.Equal(t, "QmDocs", args[1])
	assert.Equal(t, "COFFEE", args[2])
	assert.Equal(t, "25000", args[3].(*big.Int).String(), "the oracle takes whole units")
	assert.Equal(t, []interface{}{"Kenya", "Germany", "Nairobi Roasters", "Hamburg Imports"}, args[4:])
}

func TestGateway_MaintenanceTargets(t *testing.T) {
	chain := newFakeChain()
	g := newTestGateway(chain, fastPolicy())
	ctx := context.Background()

	require.True(t, g.InitializeProtocol(ctx, investor).Success)
	require.True(t, g.UpdateLivePrices(ctx, investor).Success)
	require.True(t, g.TestDirectRequest(ctx, investor).Success)

	require.Len(t, chain.sent, 3)
	assert.Equal(t, g.contracts.Protocol, chain.sent[0].To)
	assert.Equal(t, mInitializeProtocol.Selector(), chain.sent[0].Data)
	assert.Equal(t, g.contracts.PriceManager, chain.sent[1].To)
	assert.Equal(t, mUpdateLivePrices.Selector(), chain.sent[1].Data)
	assert.Equal(t, g.contracts.VerificationModule, chain.sent[2].To)
	assert.Equal(t, mTestDirectRequest.Selector(), chain.sent[2].Data)
}

func TestGateway_InvoiceListings(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetAllInvoices, []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)})
	chain.on(mGetInvoicesByStatus, []*big.Int{big.NewInt(2)})
	chain.on(mGetSupplierInvoices, []*big.Int{big.NewInt(1), big.NewInt(3)})
	g := newTestGateway(chain, fastPolicy())
	ctx := context.Background()

	assert.Equal(t, []uint64{1, 2, 3}, g.AllInvoices(ctx))
	assert.Equal(t, []uint64{2}, g.InvoicesByStatus(ctx, invoice.StatusVerified))
	assert.Equal(t, []uint64{1, 3}, g.SupplierInvoices(ctx, supplier))
}

func TestGateway_InvoiceStatusAndVerified(t *testing.T) {
	chain := newFakeChain()
	chain.on(mGetInvoiceStatus, uint8(invoice.StatusFunded))
	chain.on(mIsInvoiceVerified, true)
	g := newTestGateway(chain, fastPolicy())

	st, ok := g.InvoiceStatus(context.Background(), 4).Get()
	require.True(t, ok)
	assert.Equal(t, invoice.StatusFunded, st)

	verified, ok := g.IsInvoiceVerified(context.Background(), 4).Get()
	require.True(t, ok)
	assert.True(t, verified)
}

func TestGateway_LastFunctionsResponse(t *testing.T) {
	chain := newFakeChain()
	var reqID [32]byte
	reqID[0] = 0xde
	reqID[31] = 0xad
	chain.on(mGetLastFunctionsResponse, reqID, []byte("VALID|20|A"), []byte{})
	g := newTestGateway(chain, fastPolicy())

	r, ok := g.LastFunctionsResponse(context.Background()).Get()
	require.True(t, ok)
	assert.Equal(t, reqID, r.RequestID)
	assert.Equal(t, []byte("VALID|20|A"), r.Response)
	assert.Empty(t, r.Error)
}
