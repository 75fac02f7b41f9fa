package benchmark

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Adapter defines the interface that all storage backends must
// implement. This lets store-bench drive different engines through one
// benchmark lifecycle while keeping the workload semantics identical.
type Adapter interface {
	// Connect establishes the connection or opens the store. Not part
	// of any measurement.
	Connect(ctx context.Context) error

	// InsertData loads the dataset file into the named collection,
	// replacing any previous contents. Returns the inserted count.
	InsertData(ctx context.Context, sourcePath, collection string) (int, error)

	// ReadData performs representative query work against the
	// collection: fetch one document, then count predicate matches.
	ReadData(ctx context.Context, collection string) error

	// UpdateData flags predicate-matching documents, bounded by the
	// configured update limit. Returns the modified count.
	UpdateData(ctx context.Context, collection string) (int, error)

	// DeleteData removes the documents flagged by UpdateData. Returns
	// the deleted count.
	DeleteData(ctx context.Context, collection string) (int, error)

	// ExportData dumps the collection as JSON lines into the results
	// directory and returns the written path.
	ExportData(ctx context.Context, collection string) (string, error)

	// Close releases the connection. Safe to call whether or not
	// Connect succeeded.
	Close() error
}

// Backend adapter types
type AdapterType string

const (
	AdapterTypePebble   AdapterType = "pebble"
	AdapterTypeSQLite   AdapterType = "sqlite"
	AdapterTypePostgres AdapterType = "postgres"
)

// Common adapter errors
var (
	ErrBackendNotFound = errors.New("storage backend not found")
	ErrNotConnected    = errors.New("backend is not connected")
	ErrEmptyCollection = errors.New("collection is empty")
)

// AdapterOptions carries the workload parameters shared by every
// backend: where exports go, how each collection's representative query
// is shaped, and batching limits.
type AdapterOptions struct {
	ResultsDir  string
	Predicates  map[string]PredicateConfig // keyed by collection
	UpdateLimit int
	BatchSize   int
}

func (o AdapterOptions) predicate(collection string) PredicateConfig {
	return o.Predicates[collection]
}

func (o AdapterOptions) withDefaults() AdapterOptions {
	if o.ResultsDir == "" {
		o.ResultsDir = "results"
	}
	if o.UpdateLimit <= 0 {
		o.UpdateLimit = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10000
	}
	return o
}

// exportPath returns the destination file for a collection export.
func (o AdapterOptions) exportPath(collection, backend string) string {
	name := fmt.Sprintf("export_%s_%s.json", collection, strings.ToLower(backend))
	return filepath.Join(o.ResultsDir, name)
}

// NewAdapter creates an adapter for the configured backend type.
func NewAdapter(cfg BackendConfig, opts AdapterOptions) (Adapter, error) {
	opts = opts.withDefaults()
	switch AdapterType(cfg.Type) {
	case AdapterTypePebble:
		return NewPebbleAdapter(cfg, opts), nil
	case AdapterTypeSQLite:
		return NewSQLiteAdapter(cfg, opts), nil
	case AdapterTypePostgres:
		return NewPostgresAdapter(cfg, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBackendNotFound, cfg.Type)
	}
}
