// Package pipeline wires the core stages together: split, normalize and
// aggregate, then format. Process is the pure entry point; Runner drives a
// configured job end to end (source, output, export, metrics).
package pipeline

import (
	"errors"

	"numfix/internal/aggregate"
	"numfix/internal/report"
)

// ErrNoInput means the caller supplied no text at all. Whitespace-only text
// is valid input and yields an empty report.
var ErrNoInput = errors.New("no text provided")

// Process runs the core over text. It never fails; every run uses fresh
// tables, so concurrent calls are independent.
func Process(text string, fix bool) report.Report {
	counts, groups := aggregate.Aggregate(aggregate.SplitLines(text), fix)
	return report.Format(counts, groups)
}

// ProcessInput is Process guarded by the boundary check: an empty text is
// rejected with ErrNoInput before the core runs.
func ProcessInput(text string, fix bool) (report.Report, error) {
	if text == "" {
		return report.Report{}, ErrNoInput
	}
	return Process(text, fix), nil
}
