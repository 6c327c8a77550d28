// Package store provides the memory ledger interface and its SQLite implementation,
// plus the JSON mirror that is rewritten from the ledger.
package store

import (
	"context"
	"time"

	"github.com/rcliao/geny-memory/internal/model"
)

// Store defines the memory ledger interface.
type Store interface {
	// Append validates and durably stores a new entry. Returns the created entry.
	Append(ctx context.Context, text string, metadata map[string]any) (*model.Entry, error)

	// Get retrieves an entry by id.
	Get(ctx context.Context, id int64) (*model.Entry, error)

	// GetAll returns every entry in ingestion order.
	GetAll(ctx context.Context) ([]model.Entry, error)

	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]model.Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// MarkIndexed stamps indexed_at on every entry with id <= upTo,
	// overwriting earlier stamps.
	MarkIndexed(ctx context.Context, upTo int64, at time.Time) (int64, error)

	// StampIndexed stamps indexed_at on the given ids.
	StampIndexed(ctx context.Context, ids []int64, at time.Time) (int64, error)

	// FlushMirror atomically rewrites the mirror file from the ledger.
	FlushMirror(ctx context.Context) (*MirrorSnapshot, error)

	// Snapshot reads the ledger into a mirror snapshot without writing it.
	Snapshot(ctx context.Context) (*MirrorSnapshot, error)

	// Import appends entries not already present, assigning fresh ids.
	Import(ctx context.Context, entries []model.Entry) ([]model.Entry, error)

	// Stats returns ledger statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store.
	Close() error
}
