package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daleelapp/daleel/internal/log"
	"github.com/daleelapp/daleel/internal/testutil"
	"github.com/daleelapp/daleel/internal/vector"
)

const testDim = 8

func newTestIndex(t *testing.T, contents ...string) *vector.Flat {
	t.Helper()
	index := vector.NewFlat(testDim, t.TempDir(), log.NewNop())

	vectors := make([][]float32, len(contents))
	metas := make([]vector.Metadata, len(contents))
	for i, c := range contents {
		vectors[i] = testutil.EmbedText(c, testDim)
		metas[i] = vector.Metadata{Content: c}
	}
	require.NoError(t, index.Add(context.Background(), vectors, metas))
	return index
}

func TestRetrieve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	index := newTestIndex(t, "about cats", "about dogs", "about birds")
	r := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())

	chunks, err := r.Retrieve(ctx, "about cats", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	// The query embeds identically to its matching chunk: distance zero.
	assert.Equal(t, "about cats", chunks[0])
}

func TestRetrieveKBoundedByCount(t *testing.T) {
	t.Parallel()

	index := newTestIndex(t, "only one")
	r := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())

	chunks, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	t.Parallel()

	embedder := testutil.NewEmbedder(testDim)
	embedder.Err = assert.AnError
	r := NewRetriever(embedder, newTestIndex(t, "x"), log.NewNop())

	_, err := r.Retrieve(context.Background(), "q", 1)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(
		[]string{"chunk one", "chunk two"},
		"what is this?",
		[]Exchange{{Question: "earlier q", Answer: "earlier a"}},
	)

	assert.Contains(t, prompt, "chunk one")
	assert.Contains(t, prompt, "chunk two")
	assert.Contains(t, prompt, "what is this?")
	assert.Contains(t, prompt, "earlier q")
	assert.Contains(t, prompt, "earlier a")

	// Chunks come before the history, which comes before the question.
	assert.Less(t, strings.Index(prompt, "chunk one"), strings.Index(prompt, "earlier q"))
	assert.Less(t, strings.Index(prompt, "earlier q"), strings.Index(prompt, "what is this?"))
}

func TestBuildPromptNoHistory(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt([]string{"c"}, "q", nil)
	assert.Contains(t, prompt, "c")
	assert.Contains(t, prompt, "q")
	assert.NotContains(t, prompt, "المحادثة السابقة")
}

func TestAnswerBoundsHistoryWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	index := newTestIndex(t, "context chunk")
	retriever := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())
	gen := &testutil.Generator{Responses: []string{"answer"}}

	a := NewAnswerer(retriever, gen, 1, 2, log.NewNop())

	history := []Exchange{
		{Question: "oldest", Answer: "a0"},
		{Question: "middle", Answer: "a1"},
		{Question: "newest", Answer: "a2"},
	}
	prompt, err := a.buildPrompt(ctx, "q", history)
	require.NoError(t, err)

	// Window of 2 keeps only the most recent exchanges.
	assert.NotContains(t, prompt, "oldest")
	assert.Contains(t, prompt, "middle")
	assert.Contains(t, prompt, "newest")
}

func TestAnswer(t *testing.T) {
	t.Parallel()

	index := newTestIndex(t, "context chunk")
	retriever := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())
	gen := &testutil.Generator{Responses: []string{"the answer"}}

	a := NewAnswerer(retriever, gen, 1, 5, log.NewNop())
	answer, err := a.Answer(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestStreamAnswer(t *testing.T) {
	t.Parallel()

	index := newTestIndex(t, "context chunk")
	retriever := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())
	gen := &testutil.Generator{Chunks: []string{"part one ", "part two"}}

	a := NewAnswerer(retriever, gen, 1, 5, log.NewNop())
	stream, err := a.StreamAnswer(context.Background(), "question", nil)
	require.NoError(t, err)

	var got strings.Builder
	for text, streamErr := range stream {
		require.NoError(t, streamErr)
		got.WriteString(text)
	}
	assert.Equal(t, "part one part two", got.String())
}

func TestStreamAnswerMidStreamError(t *testing.T) {
	t.Parallel()

	index := newTestIndex(t, "context chunk")
	retriever := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())
	gen := &testutil.Generator{Chunks: []string{"partial "}, StreamErr: assert.AnError}

	a := NewAnswerer(retriever, gen, 1, 5, log.NewNop())
	stream, err := a.StreamAnswer(context.Background(), "question", nil)
	require.NoError(t, err)

	var chunks []string
	var gotErr error
	for text, streamErr := range stream {
		if streamErr != nil {
			gotErr = streamErr
			break
		}
		chunks = append(chunks, text)
	}
	assert.Equal(t, []string{"partial "}, chunks)
	assert.ErrorIs(t, gotErr, assert.AnError)
}

func TestTitle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	index := newTestIndex(t, "chunk")
	retriever := NewRetriever(testutil.NewEmbedder(testDim), index, log.NewNop())

	t.Run("real content gets a title", func(t *testing.T) {
		gen := &testutil.Generator{Responses: []string{"  شرح نظام الدرجات  "}}
		a := NewAnswerer(retriever, gen, 1, 5, log.NewNop())

		title, err := a.Title(ctx, "كيف يعمل نظام الدرجات؟")
		require.NoError(t, err)
		assert.Equal(t, "شرح نظام الدرجات", title)
	})

	t.Run("greeting is skipped", func(t *testing.T) {
		gen := &testutil.Generator{Responses: []string{"SKIP"}}
		a := NewAnswerer(retriever, gen, 1, 5, log.NewNop())

		title, err := a.Title(ctx, "مرحبا")
		require.NoError(t, err)
		assert.Empty(t, title)
	})

	t.Run("generation failure propagates", func(t *testing.T) {
		gen := &testutil.Generator{Err: assert.AnError}
		a := NewAnswerer(retriever, gen, 1, 5, log.NewNop())

		_, err := a.Title(ctx, "سؤال")
		assert.ErrorIs(t, err, assert.AnError)
	})
}
