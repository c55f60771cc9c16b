package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSourceKind names where a price snapshot came from
type PriceSourceKind string

const (
	SourcePriceManager PriceSourceKind = "price_manager"
	SourceCoinGecko    PriceSourceKind = "coingecko"
	SourceCache        PriceSourceKind = "cache"
)

// DefaultVolatility is reported when the price manager cannot compute one
var DefaultVolatility = decimal.RequireFromString("0.02")

// Stats is the protocol wide summary
type Stats struct {
	TotalInvoices    int64           `json:"total_invoices"`
	TotalFundsRaised decimal.Decimal `json:"total_funds_raised"`
	PendingInvoices  int64           `json:"pending_invoices"`
	VerifiedInvoices int64           `json:"verified_invoices"`
	FundedInvoices   int64           `json:"funded_invoices"`
	FormattedFunds   string          `json:"formatted_funds"`
}

// Contract describes the deployed protocol contract
type Contract struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Owner   string `json:"owner,omitempty"`
	Paused  bool   `json:"paused"`
}

// Prices is a USD snapshot of the tracked assets.
// InitialPricesFetched is nil when the price manager flag could not be read.
type Prices struct {
	ETH                  decimal.Decimal `json:"eth"`
	USDC                 decimal.Decimal `json:"usdc"`
	BTC                  decimal.Decimal `json:"btc"`
	LINK                 decimal.Decimal `json:"link"`
	LastUpdate           time.Time       `json:"last_update"`
	Volatility           decimal.Decimal `json:"volatility"`
	InitialPricesFetched *bool           `json:"initial_prices_fetched"`
	Source               PriceSourceKind `json:"source"`
}

// Overview is everything the dashboard header shows. Sections that could not
// be read are nil.
type Overview struct {
	Stats          *Stats    `json:"stats"`
	InvoiceCounter *int64    `json:"invoice_counter"`
	Contract       *Contract `json:"contract"`
	Prices         *Prices   `json:"prices"`
}

// Balance is a wallet's stablecoin holding
type Balance struct {
	Address   string          `json:"address"`
	USDC      decimal.Decimal `json:"usdc"`
	USDValue  decimal.Decimal `json:"usd_value"`
	Formatted string          `json:"formatted"`
}
