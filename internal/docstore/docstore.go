// Package docstore defines the narrow read contract the pipeline has with
// the tenant document store, plus a kind-keyed backend registry.
//
// The pipeline never assumes a schema: documents come back as
// document.Document values (field name → tagged-union value). Backends live
// in subpackages and self-register in init(), mirroring the relational
// storage registry.
package docstore

import (
	"context"
	"fmt"
	"sync"

	"docpipe/internal/document"
)

// Store is the document-store collaborator consumed by the pipeline.
//
// IMPORTANT: This interface is intentionally minimal — exactly the four reads
// the pipeline performs. Tenant/collection CRUD, indexing, and any write path
// are out of scope.
type Store interface {
	// ListCollections returns the names of the tenant's collections in a
	// stable order. Processing order equals this order.
	ListCollections(ctx context.Context, tenantID string) ([]string, error)

	// Count returns the total number of documents in a collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Sample returns up to n documents from the collection.
	Sample(ctx context.Context, collection string, n int) ([]document.Document, error)

	// LoadAll returns every document in the collection.
	LoadAll(ctx context.Context, collection string) ([]document.Document, error)

	// Close releases backend resources. Call once at shutdown.
	Close(ctx context.Context) error
}

// Config selects and configures a registered backend.
type Config struct {
	Kind string
	URI  string

	// Database is the tenant database name (backend-specific meaning).
	Database string
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "mongo").
//
// Panics on empty kind, nil factory, or duplicate registration: ambiguous
// backend selection should fail fast at init time.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("docstore: Register called with empty kind")
	}
	if f == nil {
		panic("docstore: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("docstore: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Store using the registered backend factory.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("docstore: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported docstore.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
