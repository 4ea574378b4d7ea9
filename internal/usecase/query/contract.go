package query

import (
	"context"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Collections resolves collection metadata.
type Collections interface {
	Get(ctx context.Context, name string) (domain.Collection, error)
}

// Gateway builds embedders for collections.
type Gateway interface {
	ForCollection(ctx context.Context, col *domain.Collection) (domain.Embedder, error)
}

// Searcher runs KNN queries against a collection's index.
type Searcher interface {
	KNN(ctx context.Context, col *domain.Collection, vector []float32, topK int) ([]domain.QueryHit, error)
}
