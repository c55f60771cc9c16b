package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount as "$1,234.56"
func FormatUSD(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	return sign + "$" + groupThousands(intPart) + "." + fracPart
}

// FormatAmount renders a token amount with grouped thousands and no currency sign ("10,000", "1,250.5")
func FormatAmount(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	intPart, fracPart, hasFrac := strings.Cut(amount.String(), ".")
	if hasFrac {
		return sign + groupThousands(intPart) + "." + fracPart
	}
	return sign + groupThousands(intPart)
}

// FormatPercent renders a percentage with the given number of decimal places ("12.00%")
func FormatPercent(value decimal.Decimal, places int32) string {
	return value.StringFixed(places) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
