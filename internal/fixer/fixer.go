// Package fixer repairs the identifier column of a single record.
//
// A record is a line of text whose first tab-separated column is a phone-number
// like identifier. When repair is enabled the identifier is rewritten into the
// canonical "234" + 11 character form (or the closest shape the input allows);
// everything from the first tab onward is carried over byte for byte.
//
// Functions in this package are pure and safe for concurrent use.
package fixer

import (
	"strings"
	"unicode/utf8"
)

const (
	// CountryPrefix is the fixed prefix of a canonical identifier.
	CountryPrefix = "234"

	// SubscriberLen is the number of characters expected after CountryPrefix.
	SubscriberLen = 11

	// Delimiter separates the identifier from the rest of the record.
	Delimiter = '\t'
)

// NormalizeLine returns the processed form of line.
//
// With fix disabled the line is only trimmed. With fix enabled the primary
// column is repaired by FixNumber and the rest of the line is reattached
// verbatim (the line as a whole is not trimmed in that mode).
func NormalizeLine(line string, fix bool) string {
	if !fix {
		return TrimSpace(line)
	}
	return FixNumber(line)
}

// FixNumber repairs the primary column of line.
//
// Rules, first match wins:
//  1. starts with "234": pad the remainder with '0' or truncate it to 11 chars
//  2. starts with "0" and is 11 chars long: replace the leading "0" with "234"
//  3. exactly 10 ASCII digits: prepend "234"
//
// An empty (after trimming) primary column returns line unchanged.
func FixNumber(line string) string {
	primary, rest := SplitPrimary(line)

	clean := TrimSpace(primary)
	if clean == "" {
		return line
	}

	return fixPrimary(clean) + rest
}

func fixPrimary(clean string) string {
	switch {
	case strings.HasPrefix(clean, CountryPrefix):
		sub := clean[len(CountryPrefix):]
		n := utf8.RuneCountInString(sub)
		switch {
		case n < SubscriberLen:
			return CountryPrefix + sub + strings.Repeat("0", SubscriberLen-n)
		case n > SubscriberLen:
			return CountryPrefix + headRunes(sub, SubscriberLen)
		}
		return clean

	case strings.HasPrefix(clean, "0") && utf8.RuneCountInString(clean) == 11:
		return CountryPrefix + clean[1:]

	case len(clean) == 10 && IsDigits(clean):
		return CountryPrefix + clean
	}
	return clean
}

// SplitPrimary splits line at the first Delimiter. rest keeps the delimiter
// itself so primary+rest == line; it is empty when line has no delimiter.
func SplitPrimary(line string) (primary, rest string) {
	if i := strings.IndexByte(line, Delimiter); i >= 0 {
		return line[:i], line[i:]
	}
	return line, ""
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !IsDigit(s[i]) {
			return false
		}
	}
	return true
}

// IsDigit reports whether b is an ASCII decimal digit.
func IsDigit(b byte) bool { return b >= '0' && b <= '9' }

// headRunes returns the first n runes of s. Invalid UTF-8 bytes count as one
// rune each, matching utf8.RuneCountInString.
func headRunes(s string, n int) string {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
