package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

// Flat is an append-only flat index over float32 vectors with brute-force
// L2 distance computation at query time (O(n) per query in store size).
// There is no eviction, no approximate-search structure, and no
// incremental re-indexing.
//
// Flat is safe for concurrent use: an in-process mutex serializes all
// access, and Save additionally takes an advisory file lock on the store
// directory so two processes cannot interleave the add→save cycle.
type Flat struct {
	mu       sync.RWMutex
	dim      int
	vectors  [][]float32
	metadata []Metadata

	dir    string
	logger *slog.Logger
}

// NewFlat creates an empty flat index for vectors of the given dimension,
// persisted under dir when Save is called.
func NewFlat(dim int, dir string, logger *slog.Logger) *Flat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flat{dim: dim, dir: dir, logger: logger}
}

// Dimension returns the fixed vector dimension.
func (f *Flat) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// Count returns the number of stored vectors.
func (f *Flat) Count(context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors), nil
}

// Add appends vectors and their metadata records. All vectors must match
// the index dimension. Duplicate content re-embedded twice produces
// duplicate entries — there is no upsert.
func (f *Flat) Add(_ context.Context, vectors [][]float32, metas []Metadata) error {
	if len(vectors) != len(metas) {
		return fmt.Errorf("%w: %d vectors, %d metadata records",
			ErrCountMismatch, len(vectors), len(metas))
	}
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				ErrDimensionMismatch, i, len(v), f.dim)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, vectors...)
	f.metadata = append(f.metadata, metas...)

	f.logger.Debug("added vectors", "count", len(vectors), "total", len(f.vectors))
	return nil
}

// Search returns up to k results ordered by non-decreasing L2 distance.
// Exactly min(k, count) results are returned.
func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(query), f.dim)
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]Result, len(f.vectors))
	for i, v := range f.vectors {
		results[i] = Result{Metadata: f.metadata[i], Distance: l2Squared(query, v)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// l2Squared computes the squared Euclidean distance between two vectors of
// equal length. The square root is skipped; ordering is unchanged and the
// distances match what flat L2 indexes report.
func l2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// lockFileName is the advisory lock taken in the store directory during Save.
const lockFileName = "store.lock"

// withFileLock runs fn while holding the store directory's advisory lock.
func (f *Flat) withFileLock(fn func() error) error {
	lock := flock.New(lockPath(f.dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring store lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			f.logger.Warn("releasing store lock failed", "error", err)
		}
	}()
	return fn()
}
