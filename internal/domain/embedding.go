package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	// BatchEmbed vectorizes up to MaxBatchSize texts in one provider call.
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
	// Dimensionality is the vector length this embedder produces.
	Dimensionality() int
	// MaxBatchSize is the largest batch one provider call accepts.
	MaxBatchSize() int
}

// EmbeddingResult carries one vector and its token usage.
type EmbeddingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple vectors and aggregate token usage.
// Vectors[i] corresponds to the i-th input text.
type BatchEmbeddingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback embeds texts one by one. Safety net for providers without a
// native batch endpoint.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	vectors := make([][]float32, len(texts))
	var prompt, total int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		vectors[i] = res.Vector
		prompt += res.PromptTokens
		total += res.TotalTokens
	}

	return BatchEmbeddingResult{Vectors: vectors, PromptTokens: prompt, TotalTokens: total}, nil
}
