package market

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/platform/invoice"
)

// Reader is the slice of the contract gateway the overview reads
type Reader interface {
	ProtocolStats(ctx context.Context) invoice.Field[invoice.ProtocolStats]
	InvoiceCounter(ctx context.Context) invoice.Field[int64]
	Version(ctx context.Context) invoice.Field[string]
	ContractInfo(ctx context.Context) invoice.Field[invoice.ContractInfo]
	LatestPrices(ctx context.Context) invoice.Field[invoice.MarketPrices]
	MarketVolatility(ctx context.Context) invoice.Field[decimal.Decimal]
	InitialPricesFetched(ctx context.Context) invoice.Field[bool]
	TokenBalance(ctx context.Context, owner string) invoice.Field[decimal.Decimal]
}

// PriceSource is an off-chain quote provider used when the price manager cannot be read
type PriceSource interface {
	MarketPrices(ctx context.Context) (invoice.MarketPrices, error)
}

// StaleStore keeps the last good price snapshot for outages of every live source
type StaleStore interface {
	SetStale(ctx context.Context, key string, value interface{}) error
	GetStale(ctx context.Context, key string, dest interface{}) (bool, error)
}
