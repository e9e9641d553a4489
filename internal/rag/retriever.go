// Package rag composes retrieval and generation: embed the question, pull
// the nearest chunks from the vector index, assemble a grounded prompt with
// bounded conversation history, and answer with the language model.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daleelapp/daleel/internal/vector"
)

// Embedder maps texts to fixed-dimension vectors.
// Satisfied by *gemini.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever finds the chunks most relevant to a question.
type Retriever struct {
	embedder Embedder
	index    vector.Index
	logger   *slog.Logger
}

// NewRetriever creates a retriever over the given embedder and index.
func NewRetriever(embedder Embedder, index vector.Index, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Retrieve returns the contents of the k chunks nearest to the query,
// ordered from most to least relevant.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query: empty result")
	}

	results, err := r.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	chunks := make([]string, len(results))
	for i, res := range results {
		chunks[i] = res.Metadata.Content
	}
	r.logger.Debug("retrieved chunks", "query_len", len(query), "chunks", len(chunks))
	return chunks, nil
}
