package report

import (
	"strings"

	"numfix/internal/fixer"
)

// CompareMode records which rule decided a comparison.
type CompareMode int

const (
	// NumericBothParsed: both primary fields start with decimal digits and
	// were ordered by their numeric value.
	NumericBothParsed CompareMode = iota
	// FallbackLexicographic: at least one side had no digit prefix; the
	// primary fields were ordered byte-wise.
	FallbackLexicographic
)

func (m CompareMode) String() string {
	switch m {
	case NumericBothParsed:
		return "numeric"
	case FallbackLexicographic:
		return "lexicographic"
	default:
		return "unknown"
	}
}

// Comparison is the tagged result of comparing two processed records.
type Comparison struct {
	Mode CompareMode
	// Order is -1, 0 or +1.
	Order int
}

// Compare orders two processed records by their primary field.
//
// Numeric parsing only accepts a leading run of ASCII digits (no sign, no
// whitespace, no radix prefix). Magnitudes are compared exactly, so primaries
// of any length order correctly; "007" and "7x" compare equal. A signed
// primary such as "+5" or "-5" has no digit prefix and falls back to
// byte-wise order, unlike parseInt which would read it as a number.
func Compare(a, b string) Comparison {
	pa, _ := fixer.SplitPrimary(a)
	pb, _ := fixer.SplitPrimary(b)

	da, okA := digitPrefix(pa)
	db, okB := digitPrefix(pb)
	if okA && okB {
		return Comparison{Mode: NumericBothParsed, Order: compareMagnitude(da, db)}
	}
	return Comparison{Mode: FallbackLexicographic, Order: strings.Compare(pa, pb)}
}

// digitPrefix returns the leading ASCII digits of s with leading zeros
// stripped ("0" stays "0"). ok is false when s does not start with a digit.
func digitPrefix(s string) (digits string, ok bool) {
	n := 0
	for n < len(s) && fixer.IsDigit(s[n]) {
		n++
	}
	if n == 0 {
		return "", false
	}
	d := strings.TrimLeft(s[:n], "0")
	if d == "" {
		d = "0"
	}
	return d, true
}

// compareMagnitude compares two zero-stripped digit strings.
func compareMagnitude(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
