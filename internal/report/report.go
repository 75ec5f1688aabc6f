// Package report turns count and group tables into the ordered, annotated
// line report and its statistics.
package report

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"numfix/internal/aggregate"
)

// DuplicateTag is appended (after a tab) to records seen more than once.
const DuplicateTag = "duplicate:"

// Report is the result of one pipeline run.
type Report struct {
	Text  string `json:"text"`
	Stats Stats  `json:"stats"`

	// Groups holds the emitted records per group in output order. It is not
	// part of the wire format; exporters use it to avoid reparsing Text.
	Groups []Group `json:"-"`
}

// Stats summarizes a run.
type Stats struct {
	TotalLines  int            `json:"totalLines"`
	UniqueLines int            `json:"uniqueLines"`
	GroupCount  int            `json:"groups"`
	GroupCounts map[string]int `json:"groupCounts"`
}

// Group is one group of the report in output order.
type Group struct {
	Key   string
	Total int
	Lines []Line
}

// Line is a distinct record and its occurrence count.
type Line struct {
	Record string
	Count  int
}

// String renders the line as it appears in Report.Text.
func (l Line) String() string {
	if l.Count > 1 {
		return l.Record + "\t" + DuplicateTag + strconv.Itoa(l.Count)
	}
	return l.Record
}

// Format sorts groups and records and renders the report.
func Format(counts aggregate.CountTable, groups aggregate.GroupTable) Report {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stats := Stats{
		TotalLines:  counts.Total(),
		UniqueLines: len(counts),
		GroupCount:  len(keys),
		GroupCounts: make(map[string]int, len(keys)),
	}

	out := make([]Group, 0, len(keys))
	var text []string
	for _, k := range keys {
		distinct := dedupe(groups[k])

		total := 0
		for _, rec := range distinct {
			total += counts[rec]
		}
		stats.GroupCounts[k] = total

		sort.SliceStable(distinct, func(i, j int) bool {
			return Compare(distinct[i], distinct[j]).Order < 0
		})

		g := Group{Key: k, Total: total, Lines: make([]Line, 0, len(distinct))}
		for _, rec := range distinct {
			l := Line{Record: rec, Count: counts[rec]}
			g.Lines = append(g.Lines, l)
			text = append(text, l.String())
		}
		out = append(out, g)
	}

	return Report{
		Text:   strings.Join(text, "\n"),
		Stats:  stats,
		Groups: out,
	}
}

// dedupe returns the distinct values of seq in first-seen order.
func dedupe(seq []string) []string {
	seen := make(map[string]struct{}, len(seq))
	out := make([]string, 0, len(seq))
	for _, s := range seq {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Encode writes r as a single JSON document. HTML characters are not escaped
// so records round-trip byte for byte.
func Encode(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// Marshal is Encode into a byte slice without the trailing newline.
func Marshal(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
