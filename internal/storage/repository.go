// Package storage defines the backend-agnostic repository used to persist
// finished reports, plus a registry of backend factories.
//
// Backends live in subpackages and register themselves from init():
//
//	import _ "numfix/internal/storage/sqlite"
//
// Each backend implements idempotent inserts in its own dialect (Postgres
// ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedKind is returned by New when no backend is registered for
// the requested kind.
var ErrUnsupportedKind = errors.New("storage: unsupported kind")

// Config is the minimal configuration needed to open a repository.
type Config struct {
	Kind string
	DSN  string
}

// Repository persists rows into tables described by TableSpec.
type Repository interface {
	// Close releases backend resources. Call it once.
	Close()

	// EnsureTable creates the table and its constraints if they do not exist.
	EnsureTable(ctx context.Context, t TableSpec) error

	// InsertRows inserts rows aligned with columns. When dedupeColumns is
	// non-empty, rows whose dedupe key already exists (in the table or
	// earlier in the same call) are skipped. It returns the number of rows
	// actually written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error)
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on an empty
// kind, a nil factory, or a duplicate registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("%w: empty kind", ErrUnsupportedKind)
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
