package app

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber inserts thousands separators into the integer part of a plain
// decimal string: "1234567.5" becomes "1,234,567.5".
func FormatNumber(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := sign + b.String()
	if hasFrac {
		out += "." + fracPart
	}
	return out
}

// formatAmount renders an amount without trailing zeros and with separators.
func formatAmount(d decimal.Decimal) string {
	return FormatNumber(d.String())
}
