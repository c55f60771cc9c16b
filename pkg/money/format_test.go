package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "$0.00"},
		{"5", "$5.00"},
		{"999.999", "$1,000.00"},
		{"1234.5", "$1,234.50"},
		{"50000", "$50,000.00"},
		{"1234567.891", "$1,234,567.89"},
		{"-42.1", "-$42.10"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUSD(decimal.RequireFromString(tt.input)))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "12.00%", FormatPercent(decimal.NewFromInt(12), 2))
	assert.Equal(t, "45.0%", FormatPercent(decimal.RequireFromString("45.04"), 1))
	assert.Equal(t, "8.75%", FormatPercent(decimal.RequireFromString("8.75"), 2))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10,000", FormatAmount(decimal.NewFromInt(10000)))
	assert.Equal(t, "50,000", FormatAmount(decimal.NewFromInt(50000)))
	assert.Equal(t, "1,250.5", FormatAmount(decimal.RequireFromString("1250.5")))
	assert.Equal(t, "100", FormatAmount(decimal.NewFromInt(100)))
	assert.Equal(t, "-2,000", FormatAmount(decimal.NewFromInt(-2000)))
}
