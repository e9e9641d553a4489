// Package vector provides vector index storage and k-nearest-neighbor
// search for retrieval.
//
// Two implementations satisfy Index:
//
//   - Flat: an append-only, file-backed flat index with brute-force L2
//     search (the default). Persistence is two sibling files under one
//     directory, guarded by a single-writer lock.
//   - PG: the same contract over PostgreSQL + pgvector, available when the
//     relational backend is PostgreSQL.
//
// Neither implementation deduplicates: the same content added twice is
// stored twice.
package vector

import (
	"context"
	"errors"
)

// Sentinel errors shared by index implementations.
var (
	// ErrDimensionMismatch is returned when a vector does not match the
	// index's fixed dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCountMismatch is returned when vectors and metadata differ in length.
	ErrCountMismatch = errors.New("vectors and metadata count mismatch")
)

// Metadata is the record stored alongside each vector.
//
// Only the chunk content is kept — not the source filename — so a chunk
// cannot be traced back to its file. Known gap in the established on-disk
// format; changing it invalidates existing stores.
type Metadata struct {
	Content string `json:"content"`
}

// Result is one search hit: the stored metadata and its L2 distance from
// the query (squared, as flat L2 indexes conventionally report it).
type Result struct {
	Metadata Metadata
	Distance float32
}

// Index is the read/write surface shared by the flat file store and the
// pgvector store.
type Index interface {
	// Add appends vectors and their 1:1 metadata records. Every vector must
	// match the index dimension; no deduplication is performed.
	Add(ctx context.Context, vectors [][]float32, metas []Metadata) error

	// Search returns up to k results ordered by non-decreasing distance.
	// Fewer than k results are returned when the index holds fewer vectors.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Dimension returns the fixed vector dimension.
	Dimension() int
}

// Persister is implemented by indexes whose state must be explicitly
// flushed to disk after mutation (the flat file store). The pgvector
// implementation persists on Add and does not implement it.
type Persister interface {
	Save() error
}
