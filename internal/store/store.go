// Package store implements the optional resume cache: a record of
// images already processed successfully, keyed by input path and a
// content hash, so a rerun over the same inputs can skip work that
// already produced output. It is confined to a single file inside the
// batch's own output directory and never touched unless resume is
// enabled.
package store

import "github.com/gwlsn/webpq/internal/model"

// Record is one cached outcome: the OutMeta for an input whose bytes
// hashed to ContentHash the last time it was processed.
type Record struct {
	InputPath   string
	ContentHash string
	Meta        model.OutMeta
}

// Cache persists and looks up Records. Implementations must be safe
// for concurrent use by multiple batch workers.
type Cache interface {
	// Lookup returns the cached record for inputPath if one exists and
	// its content hash still matches contentHash. The second return
	// value is false on any miss, including a stale hash.
	Lookup(inputPath, contentHash string) (Record, bool, error)

	// Put persists or replaces the record for its InputPath.
	Put(record Record) error

	// Close releases the underlying database handle.
	Close() error
}
