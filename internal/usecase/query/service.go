// Package query answers similarity searches over ingested collections.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Service embeds query text and searches the collection index.
type Service struct {
	collections Collections
	gateway     Gateway
	searcher    Searcher

	defaultTopK int
	maxTopK     int
}

// New creates a query service. defaultTopK is used when the caller passes
// topK <= 0; requests above maxTopK are clamped down to it.
func New(collections Collections, gateway Gateway, searcher Searcher, defaultTopK, maxTopK int) *Service {
	return &Service{
		collections: collections,
		gateway:     gateway,
		searcher:    searcher,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// Result carries the hits plus the token cost of embedding the query text.
type Result struct {
	Hits         []domain.QueryHit
	TopK         int
	PromptTokens int
}

// Query embeds text with the collection's provider and returns the topK
// nearest embedded documents.
func (s *Service) Query(ctx context.Context, collection, text string, topK int) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("empty query text: %w", domain.ErrInvalidRequest)
	}
	topK = s.clampTopK(topK)

	col, err := s.collections.Get(ctx, collection)
	if err != nil {
		return Result{}, fmt.Errorf("get collection: %w", err)
	}

	embedder, err := s.gateway.ForCollection(ctx, &col)
	if err != nil {
		return Result{}, fmt.Errorf("resolve embedder: %w", err)
	}

	emb, err := embedder.Embed(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	return s.search(ctx, &col, emb.Vector, topK, emb.PromptTokens)
}

// QueryVector searches with a caller-supplied vector, skipping the
// embedding step. The vector must match the collection's dimensionality.
func (s *Service) QueryVector(ctx context.Context, collection string, vector []float32, topK int) (Result, error) {
	if len(vector) == 0 {
		return Result{}, fmt.Errorf("empty query vector: %w", domain.ErrInvalidRequest)
	}
	topK = s.clampTopK(topK)

	col, err := s.collections.Get(ctx, collection)
	if err != nil {
		return Result{}, fmt.Errorf("get collection: %w", err)
	}

	return s.search(ctx, &col, vector, topK, 0)
}

func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}
	return topK
}

func (s *Service) search(
	ctx context.Context, col *domain.Collection, vector []float32, topK, promptTokens int,
) (Result, error) {
	if col.Dim > 0 && len(vector) != col.Dim {
		return Result{}, fmt.Errorf("query vector has %d dimensions, collection wants %d: %w",
			len(vector), col.Dim, domain.ErrDimensionMismatch)
	}

	hits, err := s.searcher.KNN(ctx, col, vector, topK)
	if err != nil {
		return Result{}, fmt.Errorf("knn search: %w", err)
	}

	return Result{Hits: hits, TopK: topK, PromptTokens: promptTokens}, nil
}
