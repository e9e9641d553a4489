// Package ingest orchestrates the document write path: discover files,
// extract text, chunk, embed in one batch, append to the vector index and
// persist, then update the processed-files manifest.
//
// Per-file problems (unsupported format, malformed document) are logged and
// skipped — one bad file never aborts a batch. A batch that produces no
// chunks at all, or an embedder that returns no vectors, is a
// configuration/data error and fails the run with a sentinel error.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/daleelapp/daleel/internal/chunk"
	"github.com/daleelapp/daleel/internal/extract"
	"github.com/daleelapp/daleel/internal/vector"
)

// Fatal ingestion errors, checked with errors.Is.
var (
	// ErrNoChunks indicates the batch produced no extractable chunks
	// (empty directory, all files unsupported or empty).
	ErrNoChunks = errors.New("no chunks to embed")

	// ErrNoVectors indicates the embedder returned an empty result.
	ErrNoVectors = errors.New("embedding returned no vectors")
)

// Embedder maps texts to fixed-dimension vectors.
// Satisfied by *gemini.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result summarizes one ingestion run.
type Result struct {
	Files  int // files that contributed at least one chunk
	Chunks int // chunks embedded and added
}

// Service runs the ingestion pipeline. The add→save cycle is serialized by
// an internal mutex: two concurrent uploads never interleave a
// read-modify-write on the index or manifest.
type Service struct {
	docsDir   string
	storeDir  string
	chunkSize int

	index    vector.Index
	embedder Embedder
	logger   *slog.Logger

	mu sync.Mutex // guards index add→save and manifest rewrite
}

// New creates an ingestion service over the given index and embedder.
func New(docsDir, storeDir string, chunkSize int, index vector.Index, embedder Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docsDir:   docsDir,
		storeDir:  storeDir,
		chunkSize: chunkSize,
		index:     index,
		embedder:  embedder,
		logger:    logger,
	}
}

// IngestAll ingests every supported file in the documents directory that is
// not yet in the manifest. When there is nothing new and the index already
// holds vectors, it returns an empty Result and no error.
func (s *Service) IngestAll(ctx context.Context) (*Result, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return nil, fmt.Errorf("reading documents directory: %w", err)
	}

	var available []string
	for _, e := range entries {
		if e.IsDir() || !extract.Supported(e.Name()) {
			if !e.IsDir() {
				s.logger.Info("skipping unsupported file", "name", e.Name())
			}
			continue
		}
		available = append(available, e.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := LoadManifest(s.storeDir)
	if err != nil {
		return nil, err
	}
	delta := manifest.Delta(available)

	if len(delta) == 0 {
		count, countErr := s.index.Count(ctx)
		if countErr != nil {
			return nil, countErr
		}
		if count > 0 {
			s.logger.Info("no new files, vector store is current", "vectors", count)
			return &Result{}, nil
		}
		// Nothing processed and nothing to process: the data directory is
		// effectively empty — a configuration error, not a steady state.
		return nil, fmt.Errorf("%w: no ingestible files in %s", ErrNoChunks, s.docsDir)
	}

	s.logger.Info("ingesting new files", "count", len(delta))
	return s.ingestLocked(ctx, delta)
}

// IngestNew ingests only the named files not yet in the manifest. Already
// processed names are dropped; when nothing remains it returns an empty
// Result. This is the watcher's entry point: an upload is indexed by its
// handler and marked in the manifest, so the filesystem event the same write
// raises must not embed the document a second time.
func (s *Service) IngestNew(ctx context.Context, names []string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := LoadManifest(s.storeDir)
	if err != nil {
		return nil, err
	}
	delta := manifest.Delta(names)
	if len(delta) == 0 {
		s.logger.Debug("no unprocessed files in batch", "files", names)
		return &Result{}, nil
	}
	return s.ingestLocked(ctx, delta)
}

// IngestFiles ingests the named files from the documents directory. All
// chunks across files are aggregated into one batch and embedded in a
// single call. The index is persisted and the manifest rewritten on
// success.
func (s *Service) IngestFiles(ctx context.Context, names []string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(ctx, names)
}

// ingestLocked runs one extract→chunk→embed→add→persist batch.
// Callers hold s.mu.
func (s *Service) ingestLocked(ctx context.Context, names []string) (*Result, error) {
	var (
		texts []string
		files int
	)
	for _, name := range names {
		text := extract.Text(filepath.Join(s.docsDir, name), s.logger)
		chunks := chunk.Split(text, s.chunkSize)
		if len(chunks) == 0 {
			s.logger.Warn("file produced no chunks", "name", name)
			continue
		}
		texts = append(texts, chunks...)
		files++
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %d files yielded nothing", ErrNoChunks, len(names))
	}

	s.logger.Info("embedding chunks", "chunks", len(texts), "files", files)
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}

	metas := make([]vector.Metadata, len(texts))
	for i, t := range texts {
		metas[i] = vector.Metadata{Content: t}
	}

	if err := s.index.Add(ctx, vectors, metas); err != nil {
		return nil, fmt.Errorf("adding vectors: %w", err)
	}
	if p, ok := s.index.(vector.Persister); ok {
		if err := p.Save(); err != nil {
			return nil, fmt.Errorf("persisting vector store: %w", err)
		}
	}

	manifest, err := LoadManifest(s.storeDir)
	if err != nil {
		return nil, err
	}
	manifest.Mark(names...)
	if err := manifest.Save(); err != nil {
		return nil, err
	}

	s.logger.Info("ingestion complete", "files", files, "chunks", len(texts))
	return &Result{Files: files, Chunks: len(texts)}, nil
}
