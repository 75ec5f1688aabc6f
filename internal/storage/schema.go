package storage

import (
	"fmt"
	"strings"
)

// ColumnType is a portable column type; each backend maps it to its own DDL.
type ColumnType string

const (
	// TypeText holds arbitrary-length text.
	TypeText ColumnType = "text"
	// TypeKey holds short strings that may take part in a UNIQUE constraint
	// (ids, hashes, group keys).
	TypeKey ColumnType = "key"
	// TypeInt holds a 64-bit integer.
	TypeInt ColumnType = "int"
)

// TableSpec describes a table the repository should create if missing.
type TableSpec struct {
	Name        string
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

// ColumnSpec describes one column. Columns are NOT NULL unless Nullable.
type ColumnSpec struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// ConstraintSpec is a table constraint. Only "unique" is supported.
type ConstraintSpec struct {
	Kind    string
	Columns []string
}

// Validate checks that t is well formed and that every constraint names
// declared columns.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	declared := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("table %s: column name is empty", t.Name)
		}
		switch c.Type {
		case TypeText, TypeKey, TypeInt:
		default:
			return fmt.Errorf("table %s: column %s: unsupported type %q", t.Name, c.Name, c.Type)
		}
		declared[c.Name] = true
	}
	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		for _, c := range con.Columns {
			if !declared[c] {
				return fmt.Errorf("table %s: constraint column %q not declared", t.Name, c)
			}
		}
	}
	return nil
}

// DedupeRows keeps the first row for each distinct dedupe key, preserving
// order. Backends whose idempotent insert does not collapse duplicates
// inside one statement call it before inserting.
func DedupeRows(rows [][]any, columns []string, dedupeColumns []string) ([][]any, error) {
	if len(dedupeColumns) == 0 {
		return rows, nil
	}
	idx := make([]int, len(dedupeColumns))
	for i, dc := range dedupeColumns {
		pos := -1
		for j, c := range columns {
			if c == dc {
				pos = j
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("dedupe column %q not present in columns", dc)
		}
		idx[i] = pos
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		for _, i := range idx {
			fmt.Fprintf(&b, "%v\x1f", row[i])
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}

// Chunk splits rows into consecutive slices of at most size rows.
func Chunk(rows [][]any, size int) [][][]any {
	if size <= 0 {
		size = len(rows)
	}
	var out [][][]any
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
