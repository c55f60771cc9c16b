package invest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the investment flow policy
type Config struct {
	// LowBalanceThreshold is the balance below which a short investor gets test funds minted
	LowBalanceThreshold decimal.Decimal

	// TestMintAmount is how much test stablecoin a mint creates
	TestMintAmount decimal.Decimal

	// ApprovalMultiplier scales the requested amount into the approval amount
	ApprovalMultiplier int64

	// MinApproval is the approval floor so small investments do not re-approve every time
	MinApproval decimal.Decimal

	// ConfirmationTimeout bounds each wait for a transaction receipt
	ConfirmationTimeout time.Duration

	// SettleTimeout bounds polling for a confirmed mint or approval to become visible in reads
	SettleTimeout time.Duration

	// SettleInterval is the first delay between settle polls
	SettleInterval time.Duration
}

// DefaultConfig returns the default investment policy
func DefaultConfig() *Config {
	return &Config{
		LowBalanceThreshold: decimal.NewFromInt(1000),
		TestMintAmount:      decimal.NewFromInt(10000),
		ApprovalMultiplier:  5,
		MinApproval:         decimal.NewFromInt(50000),
		ConfirmationTimeout: 60 * time.Second,
		SettleTimeout:       15 * time.Second,
		SettleInterval:      500 * time.Millisecond,
	}
}

// Validate fills unset values with defaults
func (c *Config) Validate() error {
	def := DefaultConfig()
	if !c.LowBalanceThreshold.IsPositive() {
		c.LowBalanceThreshold = def.LowBalanceThreshold
	}
	if !c.TestMintAmount.IsPositive() {
		c.TestMintAmount = def.TestMintAmount
	}
	if c.ApprovalMultiplier <= 0 {
		c.ApprovalMultiplier = def.ApprovalMultiplier
	}
	if c.MinApproval.IsNegative() {
		c.MinApproval = def.MinApproval
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = def.ConfirmationTimeout
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = def.SettleTimeout
	}
	if c.SettleInterval <= 0 {
		c.SettleInterval = def.SettleInterval
	}
	return nil
}

// ApprovalAmount is max(multiplier x amount, floor)
func (c *Config) ApprovalAmount(amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(amount.Mul(decimal.NewFromInt(c.ApprovalMultiplier)), c.MinApproval)
}
