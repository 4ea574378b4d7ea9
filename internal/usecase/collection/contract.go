package collection

import (
	"context"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Repository defines the storage contract for collections.
type Repository interface {
	Create(ctx context.Context, col domain.Collection) error
	Get(ctx context.Context, name string) (domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
	Delete(ctx context.Context, name string) error
}

// Documents removes a collection's document key space.
type Documents interface {
	DeleteAll(ctx context.Context, col string) error
}

// Providers answers whether an embedding provider is usable.
type Providers interface {
	Has(name string) bool
	Names() []string
}
