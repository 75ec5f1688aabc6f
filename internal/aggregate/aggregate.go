// Package aggregate counts processed records and buckets them into groups.
//
// Tables are allocated per call and owned by the caller; nothing here keeps
// state between invocations.
package aggregate

import (
	"strings"
	"unicode/utf8"

	"numfix/internal/fixer"
)

// CountTable maps a processed record to its number of occurrences.
type CountTable map[string]int

// GroupTable maps a group key to the processed records assigned to it, in
// input order and including duplicates.
type GroupTable map[string][]string

// Total returns the sum of all counts.
func (c CountTable) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// SplitLines splits a text blob into lines on "\n", dropping one "\r" that
// directly precedes each "\n".
func SplitLines(text string) []string {
	parts := strings.Split(text, "\n")
	for i, p := range parts {
		if strings.HasSuffix(p, "\r") && i < len(parts)-1 {
			parts[i] = p[:len(p)-1]
		}
	}
	return parts
}

// NonBlank returns the lines whose trimmed form is non-empty. The lines are
// returned untrimmed.
func NonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if fixer.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Aggregate normalizes every non-blank line and fills fresh count and group
// tables. The number of non-blank lines equals counts.Total().
func Aggregate(lines []string, fix bool) (CountTable, GroupTable) {
	counts := make(CountTable)
	groups := make(GroupTable)

	for _, line := range lines {
		if fixer.TrimSpace(line) == "" {
			continue
		}
		processed := fixer.NormalizeLine(line, fix)
		counts[processed]++

		key := GroupKey(processed)
		groups[key] = append(groups[key], processed)
	}
	return counts, groups
}

// GroupKey derives the group of a processed record.
//
// The key is taken from the second tab-separated column when the record has a
// tab, otherwise from the whole record:
//   - last character, if it is not an ASCII digit
//   - else first character, if it is not an ASCII digit
//   - else last character (purely numeric tags group by trailing digit)
//
// An empty field yields the empty key.
func GroupKey(processed string) string {
	field := GroupField(processed)
	if field == "" {
		return ""
	}

	last := lastChar(field)
	if !isDigitChar(last) {
		return last
	}
	if first := firstChar(field); !isDigitChar(first) {
		return first
	}
	return last
}

// GroupField returns the column used for group derivation: the text between
// the first and second tab, or the whole record when it has no tab.
func GroupField(processed string) string {
	i := strings.IndexByte(processed, fixer.Delimiter)
	if i < 0 {
		return processed
	}
	rest := processed[i+1:]
	if j := strings.IndexByte(rest, fixer.Delimiter); j >= 0 {
		return rest[:j]
	}
	return rest
}

func isDigitChar(c string) bool {
	return len(c) == 1 && fixer.IsDigit(c[0])
}

func firstChar(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

func lastChar(s string) string {
	_, size := utf8.DecodeLastRuneInString(s)
	return s[len(s)-size:]
}
