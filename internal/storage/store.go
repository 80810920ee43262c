// Package storage defines the relational-store contract the batch loader
// writes through, plus the backend registry. Backends register themselves
// from init() and are selected by Config.Kind.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a relational backend.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Store is a backend-agnostic interface for the pipeline's target store.
// Each backend implements the dedup-tolerant insert in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server unique index).
type Store interface {
	// Ping verifies connectivity. The pipeline calls it once at run start;
	// failure there is fatal to the run.
	Ping(ctx context.Context) error

	// EnsureTables creates the catalog's target tables if they do not
	// exist, including the per-table unique index over the tenant column
	// and the dedup key. Idempotent.
	EnsureTables(ctx context.Context) error

	// InsertBatch writes one batch of rows into table as a single call and
	// returns the number of rows actually inserted. Rows colliding with the
	// table's unique index may be skipped (inserted < len(rows)) or may
	// fail the batch, depending on backend semantics.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Close releases backend resources. Treat as "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
// Call it from an init() function in the backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
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

// New constructs a Store using the registered backend factory.
//
// Errors:
//   - If cfg.Kind is empty or not registered.
//   - Whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
