package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PG is the pgvector-backed Index. Rows live in the chunks table created by
// the postgres migrations; ordering uses the pgvector L2 operator <-> so
// results match the flat index's ascending-distance contract.
//
// Persistence is the database's concern: Add commits immediately and there
// is no Save. PG is safe for concurrent use.
type PG struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

// NewPG creates a pgvector index over the given pool. The pool must have
// pgvector types registered (see database.OpenPostgres) and dim must match
// the chunks.embedding column width.
func NewPG(pool *pgxpool.Pool, dim int, logger *slog.Logger) *PG {
	if logger == nil {
		logger = slog.Default()
	}
	return &PG{pool: pool, dim: dim, logger: logger}
}

// Dimension returns the fixed vector dimension.
func (p *PG) Dimension() int { return p.dim }

// Count returns the number of stored vectors.
func (p *PG) Count(ctx context.Context) (int, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(count), nil
}

// Add appends vectors and metadata in one batch. Insertion order is
// preserved; duplicates are stored twice, matching the flat index.
func (p *PG) Add(ctx context.Context, vectors [][]float32, metas []Metadata) error {
	if len(vectors) != len(metas) {
		return fmt.Errorf("%w: %d vectors, %d metadata records",
			ErrCountMismatch, len(vectors), len(metas))
	}
	for i, v := range vectors {
		if len(v) != p.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				ErrDimensionMismatch, i, len(v), p.dim)
		}
	}

	batch := &pgx.Batch{}
	for i, v := range vectors {
		batch.Queue(`INSERT INTO chunks (content, embedding) VALUES ($1, $2)`,
			metas[i].Content, pgvector.NewVector(v))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer func() {
		if err := results.Close(); err != nil {
			p.logger.Warn("closing batch results failed", "error", err)
		}
	}()

	for range vectors {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	p.logger.Debug("added vectors", "count", len(vectors))
	return nil
}

// Search returns up to k results ordered by non-decreasing L2 distance.
func (p *PG) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != p.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(query), p.dim)
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT content, embedding <-> $1 AS distance
		 FROM chunks
		 ORDER BY embedding <-> $1
		 LIMIT $2`,
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Metadata.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		// <-> reports the true L2 distance; square it to match the flat
		// index's squared-distance convention.
		r.Distance = r.Distance * r.Distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}
