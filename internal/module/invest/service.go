package invest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/pkg/logger"
	"github.com/earnx/earnx/pkg/money"
)

var errNotSettled = errors.New("chain state not yet updated")

// Orchestrator runs the check, approve and invest flow.
// Each investor has at most one flow at a time; flows are never retried automatically.
type Orchestrator struct {
	config      *Config
	chain       Chain
	observer    Observer
	invalidator Invalidator
	logger      *logger.Logger

	mu     sync.Mutex
	states map[string]State
	wg     sync.WaitGroup
}

// NewOrchestrator creates an orchestrator. observer and invalidator may be nil.
func NewOrchestrator(config *Config, chain Chain, observer Observer, invalidator Invalidator, log *logger.Logger) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	_ = config.Validate()

	if observer == nil {
		observer = nopObserver{}
	}

	return &Orchestrator{
		config:      config,
		chain:       chain,
		observer:    observer,
		invalidator: invalidator,
		logger:      log.WithField("service", "invest"),
		states:      make(map[string]State),
	}
}

// State returns the investor's current flow state
func (o *Orchestrator) State(investor string) State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.states[key(investor)]; ok {
		return s
	}
	return StateIdle
}

// Invest runs a flow to completion and returns its result
func (o *Orchestrator) Invest(ctx context.Context, req Request) (*Result, error) {
	if err := o.acquire(req.Investor); err != nil {
		return nil, err
	}
	defer o.release(req.Investor)

	return o.run(ctx, uuid.New(), req)
}

// Start launches a flow in the background and returns its id.
// The flow keeps running if ctx is cancelled, since a submitted transaction cannot be recalled.
func (o *Orchestrator) Start(ctx context.Context, req Request) (uuid.UUID, error) {
	if err := o.acquire(req.Investor); err != nil {
		return uuid.Nil, err
	}

	flowID := uuid.New()
	flowCtx := context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(req.Investor)

		_, _ = o.run(flowCtx, flowID, req)
	}()

	return flowID, nil
}

// Wait blocks until every background flow has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// MintTestFunds mints the configured amount of test stablecoin to investor.
// The investor is held in the checking state until the mint is confirmed.
func (o *Orchestrator) MintTestFunds(ctx context.Context, investor string) (*MintResult, error) {
	if err := o.acquire(investor); err != nil {
		return nil, err
	}
	defer o.release(investor)

	// the mint outlives the caller once submitted
	ctx = context.WithoutCancel(ctx)
	o.transition(investor, StateChecking)

	log := o.logger.WithContext(ctx).WithField("investor", investor)
	amount := o.config.TestMintAmount

	o.notify(investor, NoticeInfo, fmt.Sprintf("Minting %s test USDC...", money.FormatAmount(amount)), "")

	hash, err := o.mint(ctx, investor, amount)
	if err != nil {
		appErr := evm.Classify(err)
		log.Warn("test mint failed", "code", appErr.Code, "error", err)
		o.notify(investor, NoticeError, appErr.Message, "")
		return nil, appErr
	}

	log.Info("test funds minted", "amount", amount.String(), "tx_hash", hash)
	if o.invalidator != nil {
		o.invalidator.Invalidate(ctx, investor)
	}

	return &MintResult{Amount: amount, TxHash: hash}, nil
}

func (o *Orchestrator) run(ctx context.Context, flowID uuid.UUID, req Request) (*Result, error) {
	log := o.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"flow_id":    flowID.String(),
		"investor":   req.Investor,
		"invoice_id": req.InvoiceID,
		"amount":     req.Amount.String(),
	})
	start := time.Now()

	log.Info("starting investment flow")

	result, err := o.execute(ctx, log, req)
	if err != nil {
		appErr := evm.Classify(err)
		log.WithDuration(time.Since(start)).Warn("investment flow failed", "code", appErr.Code, "error", err)
		o.notify(req.Investor, NoticeError, appErr.Message, "")
		return nil, appErr
	}

	result.FlowID = flowID
	log.WithDuration(time.Since(start)).Info("investment flow completed",
		"tx_hash", result.TxHash,
		"block", result.Block,
		"minted", result.Minted,
	)

	if o.invalidator != nil {
		o.invalidator.Invalidate(ctx, req.Investor, req.InvoiceID)
	}

	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, log *logger.Logger, req Request) (*Result, error) {
	o.transition(req.Investor, StateChecking)

	if !req.Amount.IsPositive() {
		return nil, apperrors.PreconditionFailed("Please enter a valid investment amount")
	}

	// An ineligible invoice must fail before any wallet prompt
	if err := o.validateInvoice(ctx, req); err != nil {
		return nil, err
	}

	o.notify(req.Investor, NoticeInfo, "Checking your USDC balance...", "")
	minted, err := o.ensureBalance(ctx, log, req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		InvoiceID:      req.InvoiceID,
		Amount:         req.Amount,
		Minted:         minted,
		ApprovedAmount: decimal.Zero,
	}

	o.notify(req.Investor, NoticeInfo, "Checking USDC allowance for Core Contract...", "")
	allowance, err := o.readAllowance(ctx, req.Investor)
	if err != nil {
		return nil, err
	}
	log.Debug("allowance checked", "allowance", allowance.String())

	if allowance.LessThan(req.Amount) {
		o.transition(req.Investor, StateApproving)
		approved, err := o.approve(ctx, log, req)
		if err != nil {
			return nil, err
		}
		result.ApprovedAmount = approved
	}

	o.transition(req.Investor, StateInvesting)

	// The invoice may have moved while the approval was pending
	if err := o.validateInvoice(ctx, req); err != nil {
		return nil, err
	}

	o.notify(req.Investor, NoticeInfo, fmt.Sprintf("Making investment of %s USDC. Please confirm in your wallet...", req.Amount.String()), "")

	tx := o.chain.Invest(ctx, req.Investor, req.InvoiceID, req.Amount)
	if !tx.Success {
		return nil, tx.Error()
	}
	log.Info("investment submitted", "tx_hash", tx.TxHash)

	receipt, err := o.awaitReceipt(ctx, tx.TxHash)
	if err != nil {
		return nil, err
	}

	result.TxHash = tx.TxHash
	result.Block = receipt.Block()
	result.Message = fmt.Sprintf("Investment successful! %s USDC invested in Invoice #%d", req.Amount.String(), req.InvoiceID)
	o.notify(req.Investor, NoticeSuccess, result.Message, tx.TxHash)

	return result, nil
}

// validateInvoice checks the invoice is open to this investor for this amount
func (o *Orchestrator) validateInvoice(ctx context.Context, req Request) error {
	basicsField := o.chain.InvoiceBasics(ctx, req.InvoiceID)
	basics, ok := basicsField.Get()
	if !ok {
		return apperrors.TransportFailure("Could not fetch invoice details", basicsField.Err())
	}

	if basics.Status != invoice.StatusVerified {
		return apperrors.PreconditionFailed(fmt.Sprintf("Invoice not available for investment. Status: %s", basics.Status))
	}

	financialsField := o.chain.InvoiceFinancials(ctx, req.InvoiceID)
	financials, ok := financialsField.Get()
	if !ok {
		return apperrors.TransportFailure("Could not fetch invoice details", financialsField.Err())
	}

	if financials.APRBasisPoints <= 0 {
		return apperrors.PreconditionFailed("Invoice has no APR set. Verification may not be complete.")
	}

	remaining := financials.Remaining()
	if req.Amount.GreaterThan(remaining) {
		return apperrors.PreconditionFailed(fmt.Sprintf("Investment amount (%s) exceeds remaining funding (%s)", req.Amount.String(), remaining.StringFixed(2)))
	}

	if evm.AddressesEqual(basics.Supplier, req.Investor) {
		return apperrors.PreconditionFailed("You cannot invest in your own invoice. Please use a different wallet address.")
	}

	return nil
}

// ensureBalance makes sure the investor holds the amount, minting test funds when nearly empty
func (o *Orchestrator) ensureBalance(ctx context.Context, log *logger.Logger, req Request) (bool, error) {
	balance, err := o.readBalance(ctx, req.Investor)
	if err != nil {
		return false, err
	}
	if !balance.LessThan(req.Amount) {
		return false, nil
	}

	if !balance.LessThan(o.config.LowBalanceThreshold) {
		return false, insufficientBalance(balance, req.Amount)
	}

	mintAmount := o.config.TestMintAmount
	log.Info("low balance, minting test funds", "balance", balance.String(), "mint", mintAmount.String())
	o.notify(req.Investor, NoticeInfo, fmt.Sprintf("Low USDC balance detected. Minting %s test USDC...", money.FormatAmount(mintAmount)), "")

	if _, err := o.mint(ctx, req.Investor, mintAmount); err != nil {
		return false, err
	}

	err = o.settle(ctx, func() error {
		current, err := o.readBalance(ctx, req.Investor)
		if err != nil {
			return err
		}
		balance = current
		if balance.LessThan(req.Amount) {
			return errNotSettled
		}
		return nil
	})
	if err != nil {
		return true, insufficientBalance(balance, req.Amount)
	}

	return true, nil
}

// mint submits a mint, waits for its receipt and reports success
func (o *Orchestrator) mint(ctx context.Context, investor string, amount decimal.Decimal) (string, error) {
	tx := o.chain.Mint(ctx, investor, investor, amount)
	if !tx.Success {
		return "", tx.Error()
	}

	if _, err := o.awaitReceipt(ctx, tx.TxHash); err != nil {
		return "", err
	}

	o.notify(investor, NoticeSuccess, fmt.Sprintf("Successfully minted %s test USDC!", money.FormatAmount(amount)), tx.TxHash)
	return tx.TxHash, nil
}

// approve grants the protocol core a multiple of the amount and waits until the allowance is visible
func (o *Orchestrator) approve(ctx context.Context, log *logger.Logger, req Request) (decimal.Decimal, error) {
	spender := o.chain.ProtocolAddress()
	approval := o.config.ApprovalAmount(req.Amount)

	log.Info("requesting approval", "spender", spender, "approval", approval.String())
	o.notify(req.Investor, NoticeInfo, "Approving USDC for Core Contract. Please confirm in your wallet...", "")

	tx := o.chain.Approve(ctx, req.Investor, spender, approval)
	if !tx.Success {
		return decimal.Zero, tx.Error()
	}
	log.Info("approval submitted", "tx_hash", tx.TxHash)

	if _, err := o.awaitReceipt(ctx, tx.TxHash); err != nil {
		return decimal.Zero, err
	}

	o.notify(req.Investor, NoticeSuccess, fmt.Sprintf("USDC approved! You can now invest up to %s USDC.", money.FormatAmount(approval)), tx.TxHash)

	var lastErr error
	err := o.settle(ctx, func() error {
		allowance, err := o.readAllowance(ctx, req.Investor)
		if err != nil {
			lastErr = err
			return err
		}
		if allowance.LessThan(req.Amount) {
			lastErr = fmt.Errorf("allowance %s below requested %s", allowance, req.Amount)
			return errNotSettled
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, apperrors.ApprovalVerificationFailed(lastErr)
	}

	return approval, nil
}

func (o *Orchestrator) readBalance(ctx context.Context, investor string) (decimal.Decimal, error) {
	field := o.chain.TokenBalance(ctx, investor)
	balance, ok := field.Get()
	if !ok {
		return decimal.Zero, apperrors.TransportFailure("Unable to read USDC balance", field.Err())
	}
	return balance, nil
}

func (o *Orchestrator) readAllowance(ctx context.Context, investor string) (decimal.Decimal, error) {
	field := o.chain.Allowance(ctx, investor, o.chain.ProtocolAddress())
	allowance, ok := field.Get()
	if !ok {
		return decimal.Zero, apperrors.TransportFailure("Unable to read USDC allowance", field.Err())
	}
	return allowance, nil
}

func (o *Orchestrator) awaitReceipt(ctx context.Context, hash string) (*evm.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.ConfirmationTimeout)
	defer cancel()

	return o.chain.WaitForReceipt(ctx, hash)
}

// settle polls check with bounded exponential backoff until it returns nil
func (o *Orchestrator) settle(ctx context.Context, check func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.config.SettleInterval
	bo.MaxElapsedTime = o.config.SettleTimeout
	bo.Reset()

	return backoff.Retry(check, backoff.WithContext(bo, ctx))
}

func (o *Orchestrator) acquire(investor string) error {
	if _, err := evm.ValidateAddress(investor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInvestor, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	k := key(investor)
	if _, busy := o.states[k]; busy {
		return ErrFlowInProgress
	}
	// a held investor is never reported idle
	o.states[k] = StateChecking
	return nil
}

func (o *Orchestrator) release(investor string) {
	o.mu.Lock()
	delete(o.states, key(investor))
	o.mu.Unlock()

	o.observer.StateChanged(investor, StateIdle)
}

func (o *Orchestrator) transition(investor string, state State) {
	o.mu.Lock()
	o.states[key(investor)] = state
	o.mu.Unlock()

	o.observer.StateChanged(investor, state)
}

func (o *Orchestrator) notify(investor string, kind NoticeKind, message, txHash string) {
	o.observer.Notify(investor, Notice{Kind: kind, Message: message, TxHash: txHash})
}

func key(address string) string {
	return strings.ToLower(address)
}

func insufficientBalance(balance, amount decimal.Decimal) error {
	return apperrors.InsufficientBalance(fmt.Sprintf("Insufficient balance. You have %s USDC but need %s USDC", balance.StringFixed(2), amount.String()))
}
