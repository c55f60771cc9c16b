package invoices

import (
	"context"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/module/status"
	"github.com/earnx/earnx/internal/platform/contract"
	"github.com/earnx/earnx/internal/platform/invoice"
)

// Chain is the slice of the contract gateway used by suppliers and operators
type Chain interface {
	AllInvoices(ctx context.Context) []uint64
	InvoicesByStatus(ctx context.Context, status invoice.Status) []uint64
	SupplierInvoices(ctx context.Context, supplier string) []uint64

	InvoiceBasics(ctx context.Context, id uint64) invoice.Field[invoice.Basics]
	InvoiceParties(ctx context.Context, id uint64) invoice.Field[invoice.Parties]
	InvoiceLocations(ctx context.Context, id uint64) invoice.Field[invoice.Locations]
	InvoiceStatus(ctx context.Context, id uint64) invoice.Field[invoice.Status]
	IsInvoiceVerified(ctx context.Context, id uint64) invoice.Field[bool]
	LastFunctionsResponse(ctx context.Context) invoice.Field[invoice.FunctionsResponse]

	SubmitInvoice(ctx context.Context, from string, s invoice.Submission) contract.TxResult
	StartVerification(ctx context.Context, from string, r invoice.VerificationRequest) contract.TxResult
	InitializeProtocol(ctx context.Context, from string) contract.TxResult
	UpdateLivePrices(ctx context.Context, from string) contract.TxResult
	TestDirectRequest(ctx context.Context, from string) contract.TxResult

	WaitForReceipt(ctx context.Context, hash string) (*evm.Receipt, error)
}

// ViewBuilder aggregates invoice ids into display records
type ViewBuilder interface {
	Build(ctx context.Context, ids []uint64) ([]opportunity.View, error)
}

// Notifier posts progress messages to a wallet's status board
type Notifier interface {
	Push(address string, kind status.Kind, message, txHash string) status.Entry
}

// Invalidator drops cached views a write makes stale
type Invalidator interface {
	Invalidate(ctx context.Context, investor string, invoiceIDs ...uint64)
}
