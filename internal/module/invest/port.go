package invest

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/platform/contract"
	"github.com/earnx/earnx/internal/platform/invoice"
)

// Chain is the subset of the contract gateway the flow drives
type Chain interface {
	ProtocolAddress() string

	TokenBalance(ctx context.Context, owner string) invoice.Field[decimal.Decimal]
	Allowance(ctx context.Context, owner, spender string) invoice.Field[decimal.Decimal]
	InvoiceBasics(ctx context.Context, id uint64) invoice.Field[invoice.Basics]
	InvoiceFinancials(ctx context.Context, id uint64) invoice.Field[invoice.Financials]

	Mint(ctx context.Context, from, to string, amount decimal.Decimal) contract.TxResult
	Approve(ctx context.Context, from, spender string, amount decimal.Decimal) contract.TxResult
	Invest(ctx context.Context, from string, id uint64, amount decimal.Decimal) contract.TxResult

	WaitForReceipt(ctx context.Context, hash string) (*evm.Receipt, error)
}

// Observer receives state transitions and user-facing progress messages
type Observer interface {
	StateChanged(investor string, state State)
	Notify(investor string, n Notice)
}

// Invalidator drops cached views that an investment makes stale
type Invalidator interface {
	Invalidate(ctx context.Context, investor string, invoiceIDs ...uint64)
}

type nopObserver struct{}

func (nopObserver) StateChanged(string, State) {}
func (nopObserver) Notify(string, Notice)      {}
