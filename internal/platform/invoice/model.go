package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the on-chain invoice lifecycle state
type Status uint8

const (
	StatusSubmitted Status = iota
	StatusVerifying
	StatusVerified
	StatusFullyFunded
	StatusApproved
	StatusFunded
	StatusRepaid
	StatusDefaulted
	StatusRejected
)

var statusNames = [...]string{
	"Submitted",
	"Verifying",
	"Verified",
	"FullyFunded",
	"Approved",
	"Funded",
	"Repaid",
	"Defaulted",
	"Rejected",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Unknown"
}

// MarshalText renders the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a status name
func (s *Status) UnmarshalText(text []byte) error {
	parsed, ok := ParseStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown invoice status %q", text)
	}
	*s = parsed
	return nil
}

// ParseStatus accepts a status name
func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return 0, false
}

// Basics is the core record of getInvoiceBasics
type Basics struct {
	ID       uint64
	Supplier string
	Amount   decimal.Decimal
	Status   Status
}

// Parties is the counterparty record of getInvoiceParties
type Parties struct {
	Buyer        string
	ExporterName string
	BuyerName    string
	Commodity    string
}

// Financials is the funding record of getInvoiceFinancials
type Financials struct {
	TargetFunding  decimal.Decimal
	CurrentFunding decimal.Decimal
	APRBasisPoints int64
	DueDate        time.Time
}

// Remaining is target minus current funding, never negative
func (f Financials) Remaining() decimal.Decimal {
	remaining := f.TargetFunding.Sub(f.CurrentFunding)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// APRPercent converts basis points to a percentage (1250 -> 12.5)
func (f Financials) APRPercent() decimal.Decimal {
	return decimal.New(f.APRBasisPoints, -2)
}

// Locations is the trade route of getInvoiceLocations
type Locations struct {
	SupplierCountry string
	BuyerCountry    string
}

// Metadata is the bookkeeping record of getInvoiceMetadata
type Metadata struct {
	CreatedAt        time.Time
	DocumentVerified bool
	RemainingFunding decimal.Decimal
}

// Verification is the document verification result of the verification module
type Verification struct {
	Verified  bool
	Valid     bool
	Details   string
	Risk      int64
	Rating    string
	Timestamp time.Time
}

// InvestmentBasics is the funding summary of getInvestmentBasics
type InvestmentBasics struct {
	TargetFunding    decimal.Decimal
	CurrentFunding   decimal.Decimal
	RemainingFunding decimal.Decimal
	NumInvestors     int64
}

// Submission is the argument set of submitInvoice
type Submission struct {
	Buyer           string
	Amount          decimal.Decimal
	Commodity       string
	SupplierCountry string
	BuyerCountry    string
	ExporterName    string
	BuyerName       string
	DueDate         time.Time
	DocumentHash    string
}

// VerificationRequest is the argument set of startDocumentVerification.
// Amount is in whole currency units.
type VerificationRequest struct {
	InvoiceID       uint64
	DocumentHash    string
	Commodity       string
	Amount          int64
	SupplierCountry string
	BuyerCountry    string
	ExporterName    string
	BuyerName       string
}

// FunctionsResponse is the last oracle response stored by the verification module
type FunctionsResponse struct {
	RequestID [32]byte
	Response  []byte
	Error     []byte
}

// ProtocolStats is the protocol wide summary of getProtocolStats
type ProtocolStats struct {
	TotalInvoices    int64
	TotalFundsRaised decimal.Decimal
	PendingInvoices  int64
	VerifiedInvoices int64
	FundedInvoices   int64
}

// ContractInfo is the deployment summary of getContractInfo
type ContractInfo struct {
	Name          string
	Version       string
	Owner         string
	Paused        bool
	TotalInvoices int64
}

// MarketPrices is the price manager snapshot in USD
type MarketPrices struct {
	ETH        decimal.Decimal
	USDC       decimal.Decimal
	BTC        decimal.Decimal
	LINK       decimal.Decimal
	LastUpdate time.Time
}

// Commodities accepted by the protocol
var Commodities = []string{"COCOA", "COFFEE", "WHEAT", "COTTON", "PALM_OIL", "TEA", "SUGAR"}

// SupplierCountries served by the protocol
var SupplierCountries = []string{"Nigeria", "Ethiopia", "Kenya", "Ghana", "Tanzania", "Uganda", "Rwanda", "Senegal"}
