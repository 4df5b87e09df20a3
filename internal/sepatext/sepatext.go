// Package sepatext normalizes free text and monetary amounts before they
// enter a payment-initiation document. The character set and the 70-rune
// field cap come from the credit-transfer scheme the bank accepts.
package sepatext

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxFieldLen is the scheme limit for name and remittance fields.
const MaxFieldLen = 70

// allowedPunct is the explicit punctuation allow-list. Everything outside
// letters, digits, space and this set is replaced with a space.
const allowedPunct = `/-?:().,'+`

func allowedRune(r rune) bool {
	switch {
	case r == ' ':
		return true
	case r >= '0' && r <= '9':
		return true
	case strings.ContainsRune(allowedPunct, r):
		return true
	case unicode.IsLetter(r) && unicode.Is(unicode.Latin, r):
		return true
	}
	return false
}

// Sanitize replaces disallowed characters with spaces, collapses runs of
// whitespace, trims, and truncates to MaxFieldLen runes.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if allowedRune(r) {
			return r
		}
		return ' '
	}, s)

	out := strings.Join(strings.Fields(mapped), " ")
	runes := []rune(out)
	if len(runes) > MaxFieldLen {
		out = strings.TrimSpace(string(runes[:MaxFieldLen]))
	}
	return out
}

// ParseAmount parses a monetary amount, enforcing the configured bounds
// and a maximum of two decimal digits. The returned value has exactly two
// decimal places.
func ParseAmount(s string, min, max decimal.Decimal) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	if _, frac, found := strings.Cut(s, "."); found && len(frac) > 2 {
		return decimal.Zero, fmt.Errorf("amount %q has more than 2 decimal digits", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", s)
	}
	return CheckAmount(d, min, max)
}

// CheckAmount validates an already-parsed amount against the configured
// bounds and normalizes it to two decimal places.
func CheckAmount(d, min, max decimal.Decimal) (decimal.Decimal, error) {
	d = d.Round(2)
	if d.LessThan(min) {
		return decimal.Zero, fmt.Errorf("amount %s is below the minimum of %s", FormatAmount(d), FormatAmount(min))
	}
	if d.GreaterThan(max) {
		return decimal.Zero, fmt.Errorf("amount %s exceeds the maximum of %s", FormatAmount(d), FormatAmount(max))
	}
	return d, nil
}

// FormatAmount renders an amount with exactly two decimal places, the
// deterministic form used for control sums and instructed amounts.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
