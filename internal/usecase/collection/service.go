// Package collection handles collection lifecycle operations.
package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Service handles collection CRUD operations.
type Service struct {
	repo      Repository
	docs      Documents
	providers Providers
}

// New creates a collection service.
func New(repo Repository, docs Documents, providers Providers) *Service {
	return &Service{repo: repo, docs: docs, providers: providers}
}

// Create validates and stores a new collection. The embedding provider must
// be one the gateway actually holds credentials for: a collection bound to a
// dead provider would fail every file at the embed stage.
func (s *Service) Create(
	ctx context.Context, name string, dim int, metric domain.Metric, provider, model string,
) (domain.Collection, error) {
	col, err := domain.NewCollection(name, dim, metric, provider, model, time.Now().UnixMilli())
	if err != nil {
		return domain.Collection{}, fmt.Errorf("validate collection: %w", err)
	}

	if !s.providers.Has(provider) {
		return domain.Collection{}, fmt.Errorf(
			"provider %q is not configured (have %v): %w",
			provider, s.providers.Names(), domain.ErrInvalidRequest)
	}

	if err := s.repo.Create(ctx, col); err != nil {
		return domain.Collection{}, fmt.Errorf("create collection: %w", err)
	}

	return col, nil
}

// Get retrieves a collection by name.
func (s *Service) Get(ctx context.Context, name string) (domain.Collection, error) {
	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// List returns all collections.
func (s *Service) List(ctx context.Context) ([]domain.Collection, error) {
	cols, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// Delete removes a collection and everything in it. Documents go first while
// the index still exists to find them.
func (s *Service) Delete(ctx context.Context, name string) error {
	if _, err := s.repo.Get(ctx, name); err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	if err := s.docs.DeleteAll(ctx, name); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}
