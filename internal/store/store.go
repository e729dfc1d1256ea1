// Package store is the persistence abstraction for game records. Two backends
// satisfy the contract: a process-local in-memory table and a durable Redis
// backend. All mutation flows through UpdateIfVersion, the optimistic
// concurrency primitive.
package store

import (
	"context"
	"errors"

	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

// Sentinel store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrUnavailable     = errors.New("store unavailable")
)

// Filter narrows List results. The zero value matches every record.
type Filter struct {
	Status core.Status
}

// Mutator transforms a record inside a versioned update. It runs on a private
// copy; returning an error aborts the update without writing.
type Mutator func(*game.Record) error

// Store is the persistence contract for game records.
type Store interface {
	// Create assigns a fresh unique ID, persists the record, and returns it.
	Create(ctx context.Context, rec game.Record) (game.Record, error)

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (game.Record, error)

	// UpdateIfVersion applies mutate only when the stored version equals
	// expected, then persists with version+1. Returns ErrVersionConflict
	// without mutating on a mismatch. Mutator errors pass through unchanged
	// and nothing is written.
	UpdateIfVersion(ctx context.Context, id string, expected uint64, mutate Mutator) (game.Record, error)

	// List returns records matching the filter, served from a per-status
	// secondary index rather than a full scan.
	List(ctx context.Context, f Filter) ([]game.Record, error)

	Close() error
}
