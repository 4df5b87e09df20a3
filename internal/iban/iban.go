// Package iban validates bank account identifiers (IBAN) for the
// countries the refund pipeline pays out to. Validation is a pure check:
// absence of validity is the signal, nothing here returns an error.
package iban

import (
	"regexp"
	"strings"
)

// patterns maps a country code to the structural shape of its IBAN.
// Unsupported countries fail closed. Lengths are fixed per country:
// BE 16, DE 22, FR 27, LU 20, NL 18.
var patterns = map[string]*regexp.Regexp{
	"BE": regexp.MustCompile(`^BE\d{14}$`),
	"DE": regexp.MustCompile(`^DE\d{20}$`),
	"FR": regexp.MustCompile(`^FR\d{12}[0-9A-Z]{11}\d{2}$`),
	"LU": regexp.MustCompile(`^LU\d{5}[0-9A-Z]{13}$`),
	"NL": regexp.MustCompile(`^NL\d{2}[A-Z]{4}\d{10}$`),
}

// Normalize strips all whitespace and upper-cases the input. It is the
// canonical form stored and emitted in payment documents.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		}
		sb.WriteRune(r)
	}
	return strings.ToUpper(sb.String())
}

// Valid reports whether raw is a structurally correct IBAN for a
// supported country with a passing MOD-97 checksum.
func Valid(raw string) bool {
	n := Normalize(raw)
	if len(n) < 5 {
		return false
	}
	pattern, ok := patterns[n[:2]]
	if !ok {
		return false
	}
	if !pattern.MatchString(n) {
		return false
	}
	return mod97(n) == 1
}

// SupportedCountry reports whether the pipeline knows the structural
// shape of IBANs for the given country code.
func SupportedCountry(code string) bool {
	_, ok := patterns[strings.ToUpper(code)]
	return ok
}

// mod97 rearranges the IBAN (first four characters moved to the end),
// expands letters to their two-digit numerals (A=10 .. Z=35) and reduces
// the resulting numeral string modulo 97 digit by digit, so the value
// never needs big-integer arithmetic.
func mod97(n string) int {
	rearranged := n[4:] + n[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			rem = (rem*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			rem = (rem*100 + int(c) - 55) % 97
		default:
			return 0
		}
	}
	return rem
}
