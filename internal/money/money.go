// Package money converts between integer minor units and decimal amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Parse reads an amount such as "10", "10.5" or "10.00" into cents.
// More than two fractional digits is rejected rather than rounded.
func Parse(raw string) (int64, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}
	return cents.IntPart(), nil
}

// Format renders cents as a fixed two-decimal amount.
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// PercentOf returns pct percent of cents, rounded half away from zero.
func PercentOf(cents int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(pct).Div(hundred).Round(0).IntPart()
}
