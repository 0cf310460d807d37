package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a stored monetary string into a decimal.
// Stored amounts may carry thousand separators ("1,234.50") or
// surrounding whitespace; an empty string parses to zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// FormatAmount renders a decimal with two fractional digits, the
// precision used for all persisted money fields.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ApplyVAT returns the tax amount for a subtotal at the given
// percentage rate, rounded to two decimal places.
func ApplyVAT(subtotal decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
}
