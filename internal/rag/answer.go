package rag

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
)

// Generator produces model output for a prompt, either as one blocking call
// or as an incremental stream.
// Satisfied by *gemini.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Answerer produces grounded answers to user questions.
type Answerer struct {
	retriever  *Retriever
	generator  Generator
	topK       int
	memorySize int // max history exchanges carried into the prompt
	logger     *slog.Logger
}

// NewAnswerer creates an answerer with the given retrieval depth and
// history window.
func NewAnswerer(retriever *Retriever, generator Generator, topK, memorySize int, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		retriever:  retriever,
		generator:  generator,
		topK:       topK,
		memorySize: memorySize,
		logger:     logger,
	}
}

// Answer retrieves context for the question and generates a complete
// answer in one call.
func (a *Answerer) Answer(ctx context.Context, question string, history []Exchange) (string, error) {
	prompt, err := a.buildPrompt(ctx, question, history)
	if err != nil {
		return "", err
	}
	return a.generator.Generate(ctx, prompt)
}

// StreamAnswer retrieves context for the question and streams the answer
// incrementally. Errors before the stream starts are returned directly;
// mid-stream errors surface through the sequence.
func (a *Answerer) StreamAnswer(ctx context.Context, question string, history []Exchange) (iter.Seq2[string, error], error) {
	prompt, err := a.buildPrompt(ctx, question, history)
	if err != nil {
		return nil, err
	}
	return a.generator.Stream(ctx, prompt), nil
}

func (a *Answerer) buildPrompt(ctx context.Context, question string, history []Exchange) (string, error) {
	chunks, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	if len(history) > a.memorySize {
		history = history[len(history)-a.memorySize:]
	}
	return BuildPrompt(chunks, question, history), nil
}
