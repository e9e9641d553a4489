package testutil

import (
	"context"
	"hash/fnv"
	"iter"
	"math"
)

// Embedder is a deterministic in-process embedder. Each text maps to a
// stable vector derived from its FNV hash, so identical texts embed
// identically and distinct texts almost surely do not.
type Embedder struct {
	Dim int
	Err error // returned from Embed when set
}

// NewEmbedder creates a deterministic embedder of the given dimension.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{Dim: dim}
}

// Embed returns one vector per text.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = EmbedText(text, e.Dim)
	}
	return out, nil
}

// EmbedText derives a stable unit-ish vector for a text.
func EmbedText(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, dim)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(math.Sin(float64(seed%10007) + float64(i)))
	}
	return v
}

// Generator is a scripted language model. Responses are dequeued in order;
// Stream splits each response into per-rune-group chunks unless Chunks is
// set. StreamErr, when set, surfaces after the configured chunks.
type Generator struct {
	Responses []string
	Chunks    []string // overrides Responses for Stream when non-nil
	Err       error    // returned from Generate when set
	StreamErr error    // yielded as terminal stream error when set

	calls int
}

// Generate dequeues the next scripted response.
func (g *Generator) Generate(_ context.Context, _ string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Responses) == 0 {
		return "", nil
	}
	resp := g.Responses[g.calls%len(g.Responses)]
	g.calls++
	return resp, nil
}

// Stream yields the scripted chunks, then the terminal error if one is
// configured.
func (g *Generator) Stream(_ context.Context, _ string) iter.Seq2[string, error] {
	chunks := g.Chunks
	if chunks == nil && len(g.Responses) > 0 {
		chunks = []string{g.Responses[g.calls%len(g.Responses)]}
		g.calls++
	}
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.StreamErr != nil {
			yield("", g.StreamErr)
		}
	}
}
