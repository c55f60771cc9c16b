package opportunity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/platform/invoice"
	"github.com/earnx/earnx/pkg/money"
)

const (
	dateLayout = "2006-01-02"

	// tradeDurationPadding approximates the days between shipment and maturity
	tradeDurationPadding = 30

	secondsPerDay = 24 * 60 * 60
)

var (
	hundred          = decimal.NewFromInt(100)
	minInvestmentMin = decimal.NewFromInt(100)
	onePercent       = decimal.New(1, -2)
)

// reads is the raw per-invoice read set
type reads struct {
	basics     invoice.Field[invoice.Basics]
	parties    invoice.Field[invoice.Parties]
	financials invoice.Field[invoice.Financials]
	locations  invoice.Field[invoice.Locations]
	metadata   invoice.Field[invoice.Metadata]
	verify     invoice.Field[invoice.Verification]
	investment invoice.Field[invoice.InvestmentBasics]
}

// buildView derives a View; it reports false when a required read is unavailable
func buildView(id uint64, r reads, now time.Time) (View, bool) {
	basics, ok := r.basics.Get()
	if !ok {
		return View{}, false
	}
	parties, ok := r.parties.Get()
	if !ok {
		return View{}, false
	}
	financials, ok := r.financials.Get()
	if !ok {
		return View{}, false
	}

	locations := r.locations.OrElse(invoice.Locations{})
	metadata := r.metadata.OrElse(invoice.Metadata{})
	investment := r.investment.OrElse(invoice.InvestmentBasics{})

	// an unscored invoice reports zero but is bucketed as DefaultRisk
	var risk int64
	rating := "N/A"
	if v, ok := r.verify.Get(); ok {
		risk = v.Risk
		if v.Rating != "" {
			rating = v.Rating
		}
	}
	category := invoice.RiskCategory(invoice.DefaultRisk)
	if risk > 0 {
		category = invoice.RiskCategory(risk)
	}

	target := financials.TargetFunding
	current := financials.CurrentFunding
	remaining := financials.Remaining()
	apr := financials.APRPercent()
	progress := FundingProgress(current, target)
	days := DaysToMaturity(financials.DueDate, now)

	view := View{
		ID:       id,
		Status:   basics.Status,
		Supplier: basics.Supplier,
		Buyer:    parties.Buyer,

		TotalAmount:      basics.Amount,
		TargetFunding:    target,
		CurrentFunding:   current,
		RemainingFunding: remaining,
		FundingProgress:  progress,
		APR:              apr,
		APRBasisPoints:   financials.APRBasisPoints,

		NumInvestors:  investment.NumInvestors,
		MinInvestment: MinInvestment(remaining),
		MaxInvestment: remaining,

		Commodity:       parties.Commodity,
		ExporterName:    parties.ExporterName,
		BuyerName:       parties.BuyerName,
		SupplierCountry: locations.SupplierCountry,
		BuyerCountry:    locations.BuyerCountry,

		SubmittedDate:  metadata.CreatedAt,
		DueDate:        financials.DueDate,
		DaysToMaturity: days,

		DocumentVerified: metadata.DocumentVerified,
		RiskScore:        risk,
		RiskCategory:     category,
		CreditRating:     rating,

		IsAvailable:   basics.Status == invoice.StatusVerified && remaining.IsPositive(),
		IsFullyFunded: !current.LessThan(target),
		TradeDuration: days + tradeDurationPadding,
	}

	view.Formatted = Formatted{
		TotalAmount:      money.FormatUSD(basics.Amount),
		TargetFunding:    money.FormatUSD(target),
		CurrentFunding:   money.FormatUSD(current),
		RemainingFunding: money.FormatUSD(remaining),
		APR:              money.FormatPercent(apr, 2),
		FundingProgress:  money.FormatPercent(decimal.Min(progress, hundred), 1),
		SubmittedDate:    formatDate(metadata.CreatedAt),
		DueDate:          formatDate(financials.DueDate),
		TradeRoute:       locations.SupplierCountry + " → " + locations.BuyerCountry,
	}

	return view, true
}

// investmentOf derives the investor's position from the invested amount
func investmentOf(view View, amount decimal.Decimal) Investment {
	share := decimal.Zero
	if view.CurrentFunding.IsPositive() {
		share = amount.Div(view.CurrentFunding).Mul(hundred)
	}
	potentialReturn := amount.Mul(decimal.NewFromInt(1).Add(view.APR.Div(hundred)))
	profit := potentialReturn.Sub(amount)

	return Investment{
		Amount:          amount,
		Share:           share.Round(4),
		PotentialReturn: potentialReturn,
		PotentialProfit: profit,
		Formatted: InvestmentFormatted{
			Amount:          money.FormatUSD(amount),
			Share:           money.FormatPercent(share, 2),
			PotentialReturn: money.FormatUSD(potentialReturn),
			PotentialProfit: money.FormatUSD(profit),
		},
	}
}

// FundingProgress is current / target x 100, or 0 when target is 0
func FundingProgress(current, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return current.Div(target).Mul(hundred).Round(2)
}

// DaysToMaturity is the whole days from now until due, floored at 0
func DaysToMaturity(due, now time.Time) int64 {
	if due.IsZero() {
		return 0
	}
	secs := due.Unix() - now.Unix()
	if secs <= 0 {
		return 0
	}
	return int64(math.Floor(float64(secs) / secondsPerDay))
}

// MinInvestment is the larger of 100 and 1% of remaining funding
func MinInvestment(remaining decimal.Decimal) decimal.Decimal {
	return decimal.Max(minInvestmentMin, remaining.Mul(onePercent))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
