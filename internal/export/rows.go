// Package export turns a finished report into table rows and writes them
// through a storage.Repository.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"numfix/internal/report"
	"numfix/internal/storage"
)

// Column names of the export table, in insert order.
const (
	ColRunID       = "run_id"
	ColGroupKey    = "group_key"
	ColPosition    = "position"
	ColRecord      = "record"
	ColOccurrences = "occurrences"
	ColRowHash     = "row_hash"
)

// Columns lists the export columns in insert order.
func Columns() []string {
	return []string{ColRunID, ColGroupKey, ColPosition, ColRecord, ColOccurrences, ColRowHash}
}

// Row is one deduplicated report line.
type Row struct {
	RunID       string
	GroupKey    string
	Position    int // 0-based line index in the report text
	Record      string
	Occurrences int
	RowHash     string
}

// Values returns r aligned with Columns.
func (r Row) Values() []any {
	return []any{r.RunID, r.GroupKey, int64(r.Position), r.Record, int64(r.Occurrences), r.RowHash}
}

// NewRunID returns a random run identifier.
func NewRunID() string { return uuid.NewString() }

// Rows flattens rep in report order. Positions match the line numbers of
// rep.Text.
func Rows(runID string, rep report.Report) []Row {
	out := make([]Row, 0, rep.Stats.UniqueLines)
	pos := 0
	for _, g := range rep.Groups {
		for _, l := range g.Lines {
			out = append(out, Row{
				RunID:       runID,
				GroupKey:    g.Key,
				Position:    pos,
				Record:      l.Record,
				Occurrences: l.Count,
				RowHash:     RowHash(g.Key, l.Record),
			})
			pos++
		}
	}
	return out
}

// RowHash is the lowercase hex SHA-256 of the canonical form
// "group_key=<key>\x1frecord=<record>". It identifies a record independent
// of the run, so re-exporting the same report is idempotent under dedupe.
func RowHash(groupKey, record string) string {
	var b strings.Builder
	b.Grow(len(groupKey) + len(record) + 20)
	b.WriteString(ColGroupKey)
	b.WriteByte('=')
	b.WriteString(groupKey)
	b.WriteByte('\x1f')
	b.WriteString(ColRecord)
	b.WriteByte('=')
	b.WriteString(record)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// TableSpec describes the export table. With dedupe the row hash carries a
// UNIQUE constraint so backends can insert idempotently.
func TableSpec(name string, dedupe bool) storage.TableSpec {
	t := storage.TableSpec{
		Name: name,
		Columns: []storage.ColumnSpec{
			{Name: ColRunID, Type: storage.TypeKey},
			{Name: ColGroupKey, Type: storage.TypeKey},
			{Name: ColPosition, Type: storage.TypeInt},
			{Name: ColRecord, Type: storage.TypeText},
			{Name: ColOccurrences, Type: storage.TypeInt},
			{Name: ColRowHash, Type: storage.TypeKey},
		},
	}
	if dedupe {
		t.Constraints = []storage.ConstraintSpec{{Kind: "unique", Columns: []string{ColRowHash}}}
	}
	return t
}
