// Package gemini wraps the hosted Gemini API behind two small service
// surfaces: text embedding and answer generation (blocking and streaming).
//
// The client is constructed once at process start and passed by reference
// into the pipeline components; a failure to construct it is fatal. Calls
// are synchronous with no retry or backpressure — callers that need a
// deadline impose it through ctx.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"google.golang.org/genai"
)

// ErrEmptyEmbedding indicates the API returned no vectors for a non-empty input.
var ErrEmptyEmbedding = errors.New("embedding response is empty")

// Config holds the model selection for a Client.
type Config struct {
	APIKey        string
	ModelName     string // generation model, e.g. "gemini-2.5-flash"
	EmbedderModel string // embedding model, e.g. "gemini-embedding-001"
	Dimension     int32  // requested embedding dimensionality
}

// Client is a thin wrapper over the genai SDK. It is safe for concurrent
// use by multiple goroutines.
type Client struct {
	api    *genai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Client for the Gemini API backend.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{api: api, cfg: cfg, logger: logger}, nil
}

// Embed maps texts to fixed-dimension vectors, one per input, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := c.cfg.Dimension
	resp, err := c.api.Models.EmbedContent(ctx, c.cfg.EmbedderModel, contents,
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			ErrEmptyEmbedding, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyEmbedding, i)
		}
		vectors[i] = e.Values
	}

	c.logger.Debug("embedded texts", "count", len(texts), "dimension", len(vectors[0]))
	return vectors, nil
}

// Generate runs a single blocking generation call and returns the full text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Models.GenerateContent(ctx, c.cfg.ModelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}

// Stream runs a streaming generation call. The returned sequence yields
// text fragments as they arrive and is finite; a mid-stream failure yields
// one terminal ("", err) pair and ends the sequence. Single-pass, not
// restartable.
func (c *Client) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range c.api.Models.GenerateContentStream(ctx, c.cfg.ModelName, genai.Text(prompt), nil) {
			if err != nil {
				yield("", fmt.Errorf("streaming answer: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}
