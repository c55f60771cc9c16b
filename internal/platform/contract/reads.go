package contract

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/platform/invoice"
	"github.com/earnx/earnx/pkg/money"
)

// Opportunities lists invoice ids currently open for investment
func (g *Gateway) Opportunities(ctx context.Context) []uint64 {
	return g.readIDs(ctx, mGetInvestmentOpportunities)
}

// AllInvoices lists every invoice id
func (g *Gateway) AllInvoices(ctx context.Context) []uint64 {
	return g.readIDs(ctx, mGetAllInvoices)
}

// InvoicesByStatus lists invoice ids in the given status
func (g *Gateway) InvoicesByStatus(ctx context.Context, status invoice.Status) []uint64 {
	return g.readIDs(ctx, mGetInvoicesByStatus, uint8(status))
}

// SupplierInvoices lists invoice ids submitted by supplier
func (g *Gateway) SupplierInvoices(ctx context.Context, supplier string) []uint64 {
	return g.readIDs(ctx, mGetSupplierInvoices, supplier)
}

// InvestorInvoices lists invoice ids the investor has funded
func (g *Gateway) InvestorInvoices(ctx context.Context, investor string) []uint64 {
	return g.readIDs(ctx, mGetInvestorInvoices, investor)
}

func (g *Gateway) InvoiceBasics(ctx context.Context, id uint64) invoice.Field[invoice.Basics] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvoiceBasics, func(v values) (invoice.Basics, error) {
		d := decoder{v: v}
		b := invoice.Basics{
			ID:       toUint64(d.big(0)),
			Supplier: d.str(1),
			Amount:   money.FromBaseUnits(d.big(2), money.StablecoinDecimals),
			Status:   invoice.Status(toUint64(d.big(3))),
		}
		return b, d.err
	}, id)
}

func (g *Gateway) InvoiceParties(ctx context.Context, id uint64) invoice.Field[invoice.Parties] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvoiceParties, func(v values) (invoice.Parties, error) {
		d := decoder{v: v}
		p := invoice.Parties{
			Buyer:        d.str(0),
			ExporterName: d.str(1),
			BuyerName:    d.str(2),
			Commodity:    d.str(3),
		}
		return p, d.err
	}, id)
}

func (g *Gateway) InvoiceFinancials(ctx context.Context, id uint64) invoice.Field[invoice.Financials] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvoiceFinancials, func(v values) (invoice.Financials, error) {
		d := decoder{v: v}
		f := invoice.Financials{
			TargetFunding:  money.FromBaseUnits(d.big(0), money.StablecoinDecimals),
			CurrentFunding: money.FromBaseUnits(d.big(1), money.StablecoinDecimals),
			APRBasisPoints: toInt64(d.big(2)),
			DueDate:        toTime(d.big(3)),
		}
		return f, d.err
	}, id)
}

func (g *Gateway) InvoiceLocations(ctx context.Context, id uint64) invoice.Field[invoice.Locations] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvoiceLocations, func(v values) (invoice.Locations, error) {
		d := decoder{v: v}
		l := invoice.Locations{SupplierCountry: d.str(0), BuyerCountry: d.str(1)}
		return l, d.err
	}, id)
}

func (g *Gateway) InvoiceMetadata(ctx context.Context, id uint64) invoice.Field[invoice.Metadata] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvoiceMetadata, func(v values) (invoice.Metadata, error) {
		d := decoder{v: v}
		m := invoice.Metadata{
			CreatedAt:        toTime(d.big(0)),
			DocumentVerified: d.flag(1),
			RemainingFunding: money.FromBaseUnits(d.big(2), money.StablecoinDecimals),
		}
		return m, d.err
	}, id)
}

func (g *Gateway) InvestmentBasics(ctx context.Context, id uint64) invoice.Field[invoice.InvestmentBasics] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvestmentBasics, func(v values) (invoice.InvestmentBasics, error) {
		d := decoder{v: v}
		b := invoice.InvestmentBasics{
			TargetFunding:    money.FromBaseUnits(d.big(0), money.StablecoinDecimals),
			CurrentFunding:   money.FromBaseUnits(d.big(1), money.StablecoinDecimals),
			RemainingFunding: money.FromBaseUnits(d.big(2), money.StablecoinDecimals),
			NumInvestors:     toInt64(d.big(3)),
		}
		return b, d.err
	}, id)
}

// Verification reads the document verification result from the verification module
func (g *Gateway) Verification(ctx context.Context, id uint64) invoice.Field[invoice.Verification] {
	return readField(ctx, g, g.contracts.VerificationModule, mGetDocumentVerification, func(v values) (invoice.Verification, error) {
		d := decoder{v: v}
		r := invoice.Verification{
			Verified:  d.flag(0),
			Valid:     d.flag(1),
			Details:   d.str(2),
			Risk:      toInt64(d.big(3)),
			Rating:    d.str(4),
			Timestamp: toTime(d.big(5)),
		}
		return r, d.err
	}, id)
}

// InvestorAmount is the amount investor has placed in invoice id
func (g *Gateway) InvestorAmount(ctx context.Context, investor string, id uint64) invoice.Field[decimal.Decimal] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvestorData, stablecoin(0), investor, id)
}

func (g *Gateway) InvoiceStatus(ctx context.Context, id uint64) invoice.Field[invoice.Status] {
	return readField(ctx, g, g.contracts.Protocol, mGetInvoiceStatus, func(v values) (invoice.Status, error) {
		n, err := v.big(0)
		if err != nil {
			return 0, err
		}
		return invoice.Status(toUint64(n)), nil
	}, id)
}

func (g *Gateway) IsInvoiceVerified(ctx context.Context, id uint64) invoice.Field[bool] {
	return readField(ctx, g, g.contracts.Protocol, mIsInvoiceVerified, boolean(0), id)
}

func (g *Gateway) InvoiceCounter(ctx context.Context) invoice.Field[int64] {
	return readField(ctx, g, g.contracts.Protocol, mInvoiceCounter, integer(0))
}

func (g *Gateway) Version(ctx context.Context) invoice.Field[string] {
	return readField(ctx, g, g.contracts.Protocol, mVersion, func(v values) (string, error) {
		return v.str(0)
	})
}

func (g *Gateway) ContractInfo(ctx context.Context) invoice.Field[invoice.ContractInfo] {
	return readField(ctx, g, g.contracts.Protocol, mGetContractInfo, func(v values) (invoice.ContractInfo, error) {
		d := decoder{v: v}
		info := invoice.ContractInfo{
			Name:          d.str(0),
			Version:       d.str(1),
			Owner:         d.str(2),
			Paused:        d.flag(3),
			TotalInvoices: toInt64(d.big(4)),
		}
		return info, d.err
	})
}

// ProtocolStats reads protocol wide counters; funds raised is scaled from 6 decimals
func (g *Gateway) ProtocolStats(ctx context.Context) invoice.Field[invoice.ProtocolStats] {
	return readField(ctx, g, g.contracts.Protocol, mGetProtocolStats, func(v values) (invoice.ProtocolStats, error) {
		d := decoder{v: v}
		s := invoice.ProtocolStats{
			TotalInvoices:    toInt64(d.big(0)),
			TotalFundsRaised: money.FromBaseUnits(d.big(1), money.StablecoinDecimals),
			PendingInvoices:  toInt64(d.big(2)),
			VerifiedInvoices: toInt64(d.big(3)),
			FundedInvoices:   toInt64(d.big(4)),
		}
		return s, d.err
	})
}

// TokenBalance is the stablecoin balance of owner
func (g *Gateway) TokenBalance(ctx context.Context, owner string) invoice.Field[decimal.Decimal] {
	return readField(ctx, g, g.contracts.USDC, mBalanceOf, stablecoin(0), owner)
}

// Allowance is the stablecoin amount spender may move on behalf of owner
func (g *Gateway) Allowance(ctx context.Context, owner, spender string) invoice.Field[decimal.Decimal] {
	return readField(ctx, g, g.contracts.USDC, mAllowance, stablecoin(0), owner, spender)
}

// LatestPrices reads the price manager feeds; prices are scaled from 8 decimals
func (g *Gateway) LatestPrices(ctx context.Context) invoice.Field[invoice.MarketPrices] {
	return readField(ctx, g, g.contracts.PriceManager, mGetLatestPrices, func(v values) (invoice.MarketPrices, error) {
		d := decoder{v: v}
		p := invoice.MarketPrices{
			ETH:        money.FromBaseUnits(d.big(0), money.PriceFeedDecimals),
			USDC:       money.FromBaseUnits(d.big(1), money.PriceFeedDecimals),
			BTC:        money.FromBaseUnits(d.big(2), money.PriceFeedDecimals),
			LINK:       money.FromBaseUnits(d.big(3), money.PriceFeedDecimals),
			LastUpdate: toTime(d.big(4)),
		}
		return p, d.err
	})
}

// MarketVolatility reads the volatility index as a fraction (raw value / 100)
func (g *Gateway) MarketVolatility(ctx context.Context) invoice.Field[decimal.Decimal] {
	return readField(ctx, g, g.contracts.PriceManager, mCalculateMarketVolatility, func(v values) (decimal.Decimal, error) {
		n, err := v.big(0)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromBigInt(n, -2), nil
	})
}

func (g *Gateway) InitialPricesFetched(ctx context.Context) invoice.Field[bool] {
	return readField(ctx, g, g.contracts.PriceManager, mInitialPricesFetched, boolean(0))
}

// LastFunctionsResponse reads the last oracle response held by the verification module
func (g *Gateway) LastFunctionsResponse(ctx context.Context) invoice.Field[invoice.FunctionsResponse] {
	return readField(ctx, g, g.contracts.VerificationModule, mGetLastFunctionsResponse, func(v values) (invoice.FunctionsResponse, error) {
		d := decoder{v: v}
		var r invoice.FunctionsResponse
		if len(v) > 0 {
			if id, ok := v[0].([32]byte); ok {
				r.RequestID = id
			}
		}
		r.Response = d.bytes(1)
		r.Error = d.bytes(2)
		return r, d.err
	})
}

func stablecoin(i int) func(values) (decimal.Decimal, error) {
	return func(v values) (decimal.Decimal, error) {
		n, err := v.big(i)
		if err != nil {
			return decimal.Zero, err
		}
		return money.FromBaseUnits(n, money.StablecoinDecimals), nil
	}
}

func integer(i int) func(values) (int64, error) {
	return func(v values) (int64, error) {
		n, err := v.big(i)
		if err != nil {
			return 0, err
		}
		return toInt64(n), nil
	}
}

func boolean(i int) func(values) (bool, error) {
	return func(v values) (bool, error) {
		return v.flag(i)
	}
}

// rawAmount converts a human-scale stablecoin amount for call arguments
func rawAmount(amount decimal.Decimal) *big.Int {
	return money.ToBaseUnits(amount, money.StablecoinDecimals)
}
