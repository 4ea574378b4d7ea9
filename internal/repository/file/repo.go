// Package file persists file records and their pipeline status.
package file

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// store is the consumer interface for file records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements the file store used by the ingest service.
type Repo struct {
	store store
}

// New creates a file repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create stores a new file record.
func (r *Repo) Create(ctx context.Context, f *domain.File) error {
	key := fileKey(f.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}

	if err := r.store.HSet(ctx, key, fileToHash(f)); err != nil {
		return fmt.Errorf("hset file %s: %w", f.ID, err)
	}
	return nil
}

// Get retrieves a file by ID.
func (r *Repo) Get(ctx context.Context, id string) (*domain.File, error) {
	m, err := r.store.HGetAll(ctx, fileKey(id))
	if err != nil {
		return nil, fmt.Errorf("hgetall file %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrNotFound
	}
	return fileFromHash(m)
}

// Update overwrites the full file record. The pipeline orchestrator is the
// single writer, so a plain HSET is enough.
func (r *Repo) Update(ctx context.Context, f *domain.File) error {
	if err := r.store.HSet(ctx, fileKey(f.ID), fileToHash(f)); err != nil {
		return fmt.Errorf("hset file %s: %w", f.ID, err)
	}
	return nil
}

// ListByCollection returns one page of the collection's files, newest first,
// plus the total count.
func (r *Repo) ListByCollection(ctx context.Context, collection string, offset, limit int) ([]*domain.File, int, error) {
	scanned, err := r.store.Scan(ctx, fileKey("*"))
	if err != nil {
		return nil, 0, fmt.Errorf("scan files: %w", err)
	}

	// The file key space also holds segment blobs; only record hashes here.
	keys := scanned[:0]
	for _, k := range scanned {
		if !strings.HasSuffix(k, ":segments") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return []*domain.File{}, 0, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("hgetall multi files: %w", err)
	}

	files := make([]*domain.File, 0, len(results))
	for i, m := range results {
		if len(m) == 0 || m["collection"] != collection {
			continue
		}
		f, err := fileFromHash(m)
		if err != nil {
			return nil, 0, fmt.Errorf("parse file %s: %w", keys[i], err)
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt != files[j].CreatedAt {
			return files[i].CreatedAt > files[j].CreatedAt
		}
		return files[i].ID < files[j].ID
	})

	total := len(files)
	if offset >= total {
		return []*domain.File{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return files[offset:end], total, nil
}

// Delete removes the file record.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, fileKey(id)); err != nil {
		return fmt.Errorf("del file %s: %w", id, err)
	}
	return nil
}

func fileKey(id string) string {
	return fmt.Sprintf("%sfile:%s", domain.KeyPrefix, id)
}
