package opportunity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/platform/invoice"
)

// View is the fully populated, derived record of one invoice
type View struct {
	ID       uint64         `json:"id"`
	Status   invoice.Status `json:"status"`
	Supplier string         `json:"supplier"`
	Buyer    string         `json:"buyer"`

	TotalAmount      decimal.Decimal `json:"total_amount"`
	TargetFunding    decimal.Decimal `json:"target_funding"`
	CurrentFunding   decimal.Decimal `json:"current_funding"`
	RemainingFunding decimal.Decimal `json:"remaining_funding"`
	FundingProgress  decimal.Decimal `json:"funding_progress"`
	APR              decimal.Decimal `json:"apr"`
	APRBasisPoints   int64           `json:"apr_basis_points"`

	NumInvestors  int64           `json:"num_investors"`
	MinInvestment decimal.Decimal `json:"min_investment"`
	MaxInvestment decimal.Decimal `json:"max_investment"`

	Commodity       string `json:"commodity"`
	ExporterName    string `json:"exporter_name"`
	BuyerName       string `json:"buyer_name"`
	SupplierCountry string `json:"supplier_country"`
	BuyerCountry    string `json:"buyer_country"`

	SubmittedDate  time.Time `json:"submitted_date"`
	DueDate        time.Time `json:"due_date"`
	DaysToMaturity int64     `json:"days_to_maturity"`

	DocumentVerified bool   `json:"document_verified"`
	RiskScore        int64  `json:"risk_score"`
	RiskCategory     string `json:"risk_category"`
	CreditRating     string `json:"credit_rating"`

	IsAvailable   bool  `json:"is_available"`
	IsFullyFunded bool  `json:"is_fully_funded"`
	TradeDuration int64 `json:"trade_duration"`

	Formatted Formatted `json:"formatted"`
}

// Formatted holds display strings for a View
type Formatted struct {
	TotalAmount      string `json:"total_amount"`
	TargetFunding    string `json:"target_funding"`
	CurrentFunding   string `json:"current_funding"`
	RemainingFunding string `json:"remaining_funding"`
	APR              string `json:"apr"`
	FundingProgress  string `json:"funding_progress"`
	SubmittedDate    string `json:"submitted_date"`
	DueDate          string `json:"due_date"`
	TradeRoute       string `json:"trade_route"`
}

// PortfolioEntry is a View plus the investor's position in it
type PortfolioEntry struct {
	View
	Investment Investment `json:"investment"`
}

// Investment is one investor's position in an invoice
type Investment struct {
	Amount          decimal.Decimal     `json:"amount"`
	Share           decimal.Decimal     `json:"share"`
	PotentialReturn decimal.Decimal     `json:"potential_return"`
	PotentialProfit decimal.Decimal     `json:"potential_profit"`
	Formatted       InvestmentFormatted `json:"formatted"`
}

// InvestmentFormatted holds display strings for an Investment
type InvestmentFormatted struct {
	Amount          string `json:"amount"`
	Share           string `json:"share"`
	PotentialReturn string `json:"potential_return"`
	PotentialProfit string `json:"potential_profit"`
}
