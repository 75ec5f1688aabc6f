package fixer

import (
	"strings"
	"unicode/utf8"
)

// TrimSpace removes leading and trailing whitespace using the whitespace set of
// web form input (ECMAScript WhiteSpace + LineTerminator). It differs from
// strings.TrimSpace in two places: U+FEFF is trimmed and U+0085 is kept.
func TrimSpace(s string) string {
	if !HasEdgeSpace(s) {
		return s
	}
	return strings.TrimFunc(s, IsSpace)
}

// HasEdgeSpace reports whether s starts or ends with a rune that TrimSpace
// would remove. It lets hot paths skip the trim allocation entirely.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	if b := s[0]; b < 0x80 {
		if isASCIISpace(b) {
			return true
		}
	} else if r := firstRune(s); IsSpace(r) {
		return true
	}
	if b := s[len(s)-1]; b < 0x80 {
		return isASCIISpace(b)
	}
	return IsSpace(lastRune(s))
}

// IsSpace reports whether r belongs to the trim set.
func IsSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		0x00A0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

func isASCIISpace(b byte) bool {
	switch b {
	case '\t', '\n', '\v', '\f', '\r', ' ':
		return true
	}
	return false
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
