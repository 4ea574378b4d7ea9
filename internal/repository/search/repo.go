// Package search runs KNN similarity queries over a collection's documents.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/filedex/internal/db"
	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/repository/collection"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the query service's search port.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// KNN returns the topK documents nearest to vector. Only embedded documents
// participate: a file mid-pipeline never surfaces half-ingested results.
// For L2 collections scores are raw distances (ascending); for cosine and IP
// they are similarities in [0,1].
func (r *Repo) KNN(
	ctx context.Context, col *domain.Collection, vector []float32, topK int,
) ([]domain.QueryHit, error) {
	q := &db.KNNQuery{
		IndexName:    collection.IndexName(col.Name),
		Filter:       "@embedded:{1}",
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{"file_id", "ordinal", "text", "__vector_score"},
		RawScores:    col.Metric == domain.MetricL2,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", col.Name, err)
	}

	return parseHits(sr, col.Name), nil
}

// parseHits converts db.SearchResult entries into query hits.
func parseHits(sr *db.SearchResult, col string) []domain.QueryHit {
	if sr == nil || len(sr.Entries) == 0 {
		return []domain.QueryHit{}
	}

	prefix := collection.DocPrefix(col)
	hits := make([]domain.QueryHit, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		ordinal, _ := strconv.Atoi(entry.Fields["ordinal"])
		hits = append(hits, domain.QueryHit{
			DocumentID: strings.TrimPrefix(entry.Key, prefix),
			FileID:     entry.Fields["file_id"],
			Ordinal:    ordinal,
			Score:      entry.Score,
			Text:       entry.Fields["text"],
		})
	}

	return hits
}
