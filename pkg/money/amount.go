package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// On-chain scales
const (
	// StablecoinDecimals is the scale of USDC amounts and every protocol funding figure
	StablecoinDecimals = 6
	// PriceFeedDecimals is the scale of price manager feeds
	PriceFeedDecimals = 8
)

// ToBaseUnits converts a human-scale amount to on-chain base units.
// Digits beyond the scale are truncated, so 1.2345678 USDC becomes 1234567.
func ToBaseUnits(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromBaseUnits converts on-chain base units to a human-scale amount.
// A nil value is treated as zero.
func FromBaseUnits(amount *big.Int, decimals int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ParseAmount parses a user supplied amount such as "100", "2500.50", "1,000"
// or a FormatUSD rendering like "-$1,234.57".
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	negative := strings.HasPrefix(raw, "-")
	if negative {
		raw = raw[1:]
	}
	raw = strings.ReplaceAll(strings.TrimPrefix(raw, "$"), ",", "")
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	if strings.ContainsAny(raw[:1], "+-") {
		return decimal.Zero, fmt.Errorf("invalid amount format")
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format")
	}

	if negative {
		return amount.Neg(), nil
	}
	return amount, nil
}

// Amount is a decimal that also decodes display strings ("$1,234.57") from JSON
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON accepts a JSON number or any string ParseAmount understands
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}

	d, err := ParseAmount(strings.Trim(text, `"`))
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// USDValue computes amount * price, rounded to cents
func USDValue(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price).Round(2)
}
