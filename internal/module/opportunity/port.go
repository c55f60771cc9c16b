package opportunity

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/platform/invoice"
)

// Reader is the subset of the contract gateway the aggregator reads from
type Reader interface {
	Opportunities(ctx context.Context) []uint64
	InvestorInvoices(ctx context.Context, investor string) []uint64

	InvoiceBasics(ctx context.Context, id uint64) invoice.Field[invoice.Basics]
	InvoiceParties(ctx context.Context, id uint64) invoice.Field[invoice.Parties]
	InvoiceFinancials(ctx context.Context, id uint64) invoice.Field[invoice.Financials]
	InvoiceLocations(ctx context.Context, id uint64) invoice.Field[invoice.Locations]
	InvoiceMetadata(ctx context.Context, id uint64) invoice.Field[invoice.Metadata]
	Verification(ctx context.Context, id uint64) invoice.Field[invoice.Verification]
	InvestmentBasics(ctx context.Context, id uint64) invoice.Field[invoice.InvestmentBasics]
	InvestorAmount(ctx context.Context, investor string, id uint64) invoice.Field[decimal.Decimal]
}

// Service produces opportunity and portfolio views
type Service interface {
	Opportunities(ctx context.Context) ([]View, error)
	Details(ctx context.Context, id uint64) (*View, error)
	Portfolio(ctx context.Context, investor string) ([]PortfolioEntry, error)
}
