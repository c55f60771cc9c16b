package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
)

// TxResult is the outcome of submitting a transaction.
// Success means the wallet accepted it, not that it was mined.
type TxResult struct {
	Success bool
	TxHash  string
	Err     *apperrors.AppError
}

// Error returns the classified failure, or nil
func (r TxResult) Error() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

var errReceiptPending = errors.New("receipt not yet available")

// Invest places amount of stablecoin into invoice id
func (g *Gateway) Invest(ctx context.Context, from string, id uint64, amount decimal.Decimal) TxResult {
	return g.send(ctx, from, g.contracts.Protocol, mInvestInInvoice, id, rawAmount(amount))
}

// Approve lets spender move amount of the caller's stablecoin
func (g *Gateway) Approve(ctx context.Context, from, spender string, amount decimal.Decimal) TxResult {
	return g.send(ctx, from, g.contracts.USDC, mApprove, spender, rawAmount(amount))
}

// Mint creates test stablecoin for to
func (g *Gateway) Mint(ctx context.Context, from, to string, amount decimal.Decimal) TxResult {
	return g.send(ctx, from, g.contracts.USDC, mMint, to, rawAmount(amount))
}

// SubmitInvoice registers a new invoice with from as supplier
func (g *Gateway) SubmitInvoice(ctx context.Context, from string, s invoice.Submission) TxResult {
	return g.send(ctx, from, g.contracts.Protocol, mSubmitInvoice,
		s.Buyer,
		rawAmount(s.Amount),
		s.Commodity,
		s.SupplierCountry,
		s.BuyerCountry,
		s.ExporterName,
		s.BuyerName,
		s.DueDate.Unix(),
		s.DocumentHash,
	)
}

// StartVerification asks the verification module to check an invoice's documents
func (g *Gateway) StartVerification(ctx context.Context, from string, r invoice.VerificationRequest) TxResult {
	return g.send(ctx, from, g.contracts.VerificationModule, mStartDocumentVerification,
		r.InvoiceID,
		r.DocumentHash,
		r.Commodity,
		r.Amount,
		r.SupplierCountry,
		r.BuyerCountry,
		r.ExporterName,
		r.BuyerName,
	)
}

func (g *Gateway) InitializeProtocol(ctx context.Context, from string) TxResult {
	return g.send(ctx, from, g.contracts.Protocol, mInitializeProtocol)
}

func (g *Gateway) UpdateLivePrices(ctx context.Context, from string) TxResult {
	return g.send(ctx, from, g.contracts.PriceManager, mUpdateLivePrices)
}

func (g *Gateway) TestDirectRequest(ctx context.Context, from string) TxResult {
	return g.send(ctx, from, g.contracts.VerificationModule, mTestDirectRequest)
}

func (g *Gateway) send(ctx context.Context, from, to string, m evm.Method, args ...interface{}) TxResult {
	log := g.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"method":   m.Name,
		"contract": to,
		"from":     from,
	})

	data, err := m.Pack(args...)
	if err != nil {
		log.Error("failed to encode transaction", "error", err)
		return TxResult{Err: apperrors.Internal("failed to encode transaction", err)}
	}

	hash, err := g.sender.SendTransaction(ctx, evm.TxRequest{From: from, To: to, Data: data})
	if err != nil {
		classified := evm.Classify(err)
		log.Warn("transaction rejected", "code", classified.Code, "error", err)
		return TxResult{Err: classified}
	}

	log.Info("transaction submitted", "tx_hash", hash)
	return TxResult{Success: true, TxHash: hash}
}

// WaitForReceipt polls for the receipt of hash with exponential backoff.
// It returns TimedOut once the policy timeout elapses, and ContractRevert when
// the transaction was mined but failed.
func (g *Gateway) WaitForReceipt(ctx context.Context, hash string) (*evm.Receipt, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.receipts.InitialInterval
	bo.MaxInterval = g.receipts.MaxInterval
	bo.MaxElapsedTime = g.receipts.Timeout
	bo.Reset()

	start := time.Now()
	var receipt *evm.Receipt
	operation := func() error {
		r, err := g.reader.TransactionReceipt(ctx, hash)
		if err != nil {
			g.logger.Debug("receipt lookup failed", "tx_hash", hash, "error", err)
			return err
		}
		if r == nil {
			return errReceiptPending
		}
		receipt = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.TransportFailure("Transaction wait cancelled", ctx.Err())
		}
		msg := fmt.Sprintf("Transaction %s was not confirmed within %s", hash, g.receipts.Timeout)
		return nil, apperrors.TimedOut(msg, err)
	}

	g.logger.Info("transaction confirmed",
		"tx_hash", hash,
		"block", receipt.Block(),
		"status", receipt.Status,
		"waited_ms", time.Since(start).Milliseconds(),
	)

	if !receipt.Succeeded() {
		return receipt, apperrors.ContractRevert("", fmt.Errorf("transaction %s reverted", hash))
	}
	return receipt, nil
}
