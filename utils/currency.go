package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBaht formats an amount the way it is shown to guests.
// Example: 15000.5 -> "฿15,000.50"
func FormatBaht(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	parts := strings.SplitN(amount.StringFixed(2), ".", 2)
	integerPart := parts[0]

	// pemisah ribuan
	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}
	return sign + "฿" + strings.Join(groups, ",") + "." + parts[1]
}
