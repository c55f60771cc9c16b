package invoices

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/module/opportunity"
	"github.com/earnx/earnx/internal/module/status"
	"github.com/earnx/earnx/internal/platform/contract"
	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/pkg/logger"
	"github.com/earnx/earnx/pkg/money"
)

// DefaultConfirmationTimeout bounds the wait for a supplier or operator transaction
const DefaultConfirmationTimeout = 2 * time.Minute

// Service handles supplier submissions, verification requests and protocol maintenance
type Service struct {
	chain       Chain
	views       ViewBuilder
	notifier    Notifier
	invalidator Invalidator
	logger      *logger.Logger

	confirmationTimeout time.Duration
	now                 func() time.Time
}

// NewService creates the service. notifier and invalidator may be nil.
func NewService(chain Chain, views ViewBuilder, notifier Notifier, invalidator Invalidator, log *logger.Logger) *Service {
	return &Service{
		chain:               chain,
		views:               views,
		notifier:            notifier,
		invalidator:         invalidator,
		logger:              log.WithField("service", "invoices"),
		confirmationTimeout: DefaultConfirmationTimeout,
		now:                 time.Now,
	}
}

// List returns every invoice, or only those in the given status
func (s *Service) List(ctx context.Context, filter *invoice.Status) ([]opportunity.View, error) {
	var ids []uint64
	if filter != nil {
		ids = s.chain.InvoicesByStatus(ctx, *filter)
	} else {
		ids = s.chain.AllInvoices(ctx)
	}
	return s.views.Build(ctx, ids)
}

// Supplied returns the invoices submitted by supplier
func (s *Service) Supplied(ctx context.Context, supplier string) ([]opportunity.View, error) {
	if _, err := evm.ValidateAddress(supplier); err != nil {
		return nil, apperrors.Validation("Invalid supplier address")
	}
	return s.views.Build(ctx, s.chain.SupplierInvoices(ctx, supplier))
}

// Status reports where invoice id sits in its lifecycle
func (s *Service) Status(ctx context.Context, id uint64) (*StatusReport, error) {
	var (
		st       invoice.Field[invoice.Status]
		verified invoice.Field[bool]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st = s.chain.InvoiceStatus(gctx, id)
		return nil
	})
	g.Go(func() error {
		verified = s.chain.IsInvoiceVerified(gctx, id)
		return nil
	})
	_ = g.Wait()

	value, ok := st.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Invoice status unavailable", st.Err())
	}

	report := &StatusReport{ID: id, Status: value}
	if v, ok := verified.Get(); ok {
		report.Verified = &v
	}
	return report, nil
}

// Submit registers a new invoice on behalf of supplier and waits for it to be mined
func (s *Service) Submit(ctx context.Context, supplier string, sub Submission) (*TxOutcome, error) {
	if err := s.validateSubmission(supplier, sub); err != nil {
		return nil, err
	}

	return s.transact(ctx, supplier, "Submitting invoice. Please confirm in your wallet...", "Invoice submitted successfully!",
		func(ctx context.Context) contract.TxResult {
			return s.chain.SubmitInvoice(ctx, supplier, sub)
		})
}

// StartVerification asks the oracle network to check the invoice documents.
// Only the invoice's supplier may request it, and only before verification has concluded.
func (s *Service) StartVerification(ctx context.Context, supplier string, id uint64, documentHash string) (*TxOutcome, error) {
	documentHash = strings.TrimSpace(documentHash)
	if documentHash == "" {
		return nil, apperrors.Validation("Document hash is required")
	}

	var (
		basics    invoice.Field[invoice.Basics]
		parties   invoice.Field[invoice.Parties]
		locations invoice.Field[invoice.Locations]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		basics = s.chain.InvoiceBasics(gctx, id)
		return nil
	})
	g.Go(func() error {
		parties = s.chain.InvoiceParties(gctx, id)
		return nil
	})
	g.Go(func() error {
		locations = s.chain.InvoiceLocations(gctx, id)
		return nil
	})
	_ = g.Wait()

	b, ok := basics.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Invoice details unavailable", basics.Err())
	}
	if !evm.AddressesEqual(b.Supplier, supplier) {
		return nil, apperrors.PreconditionFailed("Only the invoice supplier can request verification")
	}
	if b.Status != invoice.StatusSubmitted && b.Status != invoice.StatusVerifying {
		return nil, apperrors.PreconditionFailed(fmt.Sprintf("Invoice is %s and can no longer be verified", b.Status))
	}

	p, ok := parties.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Invoice parties unavailable", parties.Err())
	}
	l, ok := locations.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Invoice locations unavailable", locations.Err())
	}

	req := invoice.VerificationRequest{
		InvoiceID:       id,
		DocumentHash:    documentHash,
		Commodity:       p.Commodity,
		Amount:          b.Amount.IntPart(),
		SupplierCountry: l.SupplierCountry,
		BuyerCountry:    l.BuyerCountry,
		ExporterName:    p.ExporterName,
		BuyerName:       p.BuyerName,
	}

	out, err := s.transact(ctx, supplier, "Requesting document verification...", "Document verification requested!",
		func(ctx context.Context) contract.TxResult {
			return s.chain.StartVerification(ctx, supplier, req)
		})
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(context.WithoutCancel(ctx), "", id)
	}
	return out, nil
}

// OracleResponse returns the last answer delivered by the verification oracle
func (s *Service) OracleResponse(ctx context.Context) (*OracleResponse, error) {
	f := s.chain.LastFunctionsResponse(ctx)
	r, ok := f.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Oracle response unavailable", f.Err())
	}

	out := &OracleResponse{
		RequestID:   "0x" + hex.EncodeToString(r.RequestID[:]),
		ResponseHex: "0x" + hex.EncodeToString(r.Response),
	}
	if utf8.Valid(r.Response) {
		out.Response = string(r.Response)
	}
	if len(r.Error) > 0 {
		out.Error = string(r.Error)
	}
	return out, nil
}

// RefreshPrices pulls fresh commodity prices into the protocol
func (s *Service) RefreshPrices(ctx context.Context, operator string) (*TxOutcome, error) {
	return s.transact(ctx, operator, "Updating live prices...", "Live prices updated!",
		func(ctx context.Context) contract.TxResult {
			return s.chain.UpdateLivePrices(ctx, operator)
		})
}

// InitializeProtocol runs the one-time protocol setup
func (s *Service) InitializeProtocol(ctx context.Context, operator string) (*TxOutcome, error) {
	return s.transact(ctx, operator, "Initializing protocol...", "Protocol initialized!",
		func(ctx context.Context) contract.TxResult {
			return s.chain.InitializeProtocol(ctx, operator)
		})
}

// TestVerification sends a canned request through the oracle network
func (s *Service) TestVerification(ctx context.Context, operator string) (*TxOutcome, error) {
	return s.transact(ctx, operator, "Sending test verification request...", "Test verification request sent!",
		func(ctx context.Context) contract.TxResult {
			return s.chain.TestDirectRequest(ctx, operator)
		})
}

// transact submits a transaction and waits for it to be mined.
// The wait is detached from ctx once the wallet has accepted the transaction.
func (s *Service) transact(ctx context.Context, from, pending, done string, send func(context.Context) contract.TxResult) (*TxOutcome, error) {
	if _, err := evm.ValidateAddress(from); err != nil {
		return nil, apperrors.Validation("Invalid wallet address")
	}

	log := s.logger.WithContext(ctx).WithField("from", from)
	ctx = context.WithoutCancel(ctx)

	s.notify(from, status.KindInfo, pending, "")

	tx := send(ctx)
	if !tx.Success {
		appErr := tx.Err
		if appErr == nil {
			appErr = apperrors.Internal("Transaction was not submitted", nil)
		}
		log.Warn("transaction rejected", "code", appErr.Code, "error", tx.Error())
		s.notify(from, status.KindError, appErr.Message, "")
		return nil, appErr
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmationTimeout)
	defer cancel()

	receipt, err := s.chain.WaitForReceipt(waitCtx, tx.TxHash)
	if err != nil {
		appErr := evm.Classify(err)
		log.Warn("transaction failed", "code", appErr.Code, "tx_hash", tx.TxHash, "error", err)
		s.notify(from, status.KindError, appErr.Message, tx.TxHash)
		return nil, appErr
	}

	log.Info("transaction confirmed", "tx_hash", tx.TxHash, "block", receipt.Block())
	s.notify(from, status.KindSuccess, done, tx.TxHash)

	return &TxOutcome{TxHash: tx.TxHash, Block: receipt.Block()}, nil
}

func (s *Service) notify(address string, kind status.Kind, message, txHash string) {
	if s.notifier != nil {
		s.notifier.Push(address, kind, message, txHash)
	}
}

func (s *Service) validateSubmission(supplier string, sub Submission) error {
	if _, err := evm.ValidateAddress(supplier); err != nil {
		return apperrors.Validation("Invalid supplier address")
	}
	if _, err := evm.ValidateAddress(sub.Buyer); err != nil {
		return apperrors.Validation("Invalid buyer address")
	}
	if evm.AddressesEqual(sub.Buyer, supplier) {
		return apperrors.Validation("Buyer and supplier must differ")
	}
	if !sub.Amount.IsPositive() {
		return apperrors.Validation("Invoice amount must be positive")
	}
	if sub.Amount.Exponent() < -money.StablecoinDecimals {
		return apperrors.Validation(fmt.Sprintf("Invoice amount supports at most %d decimals", money.StablecoinDecimals))
	}
	if !slices.Contains(invoice.Commodities, sub.Commodity) {
		return apperrors.Validation(fmt.Sprintf("Unknown commodity %q", sub.Commodity))
	}
	if !slices.Contains(invoice.SupplierCountries, sub.SupplierCountry) {
		return apperrors.Validation(fmt.Sprintf("Unsupported supplier country %q", sub.SupplierCountry))
	}

	for _, f := range []struct{ name, value string }{
		{"Buyer country", sub.BuyerCountry},
		{"Exporter name", sub.ExporterName},
		{"Buyer name", sub.BuyerName},
		{"Document hash", sub.DocumentHash},
	} {
		if strings.TrimSpace(f.value) == "" {
			return apperrors.Validation(f.name + " is required")
		}
	}

	if !sub.DueDate.After(s.now()) {
		return apperrors.Validation("Due date must be in the future")
	}
	return nil
}
