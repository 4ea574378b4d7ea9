// Package document persists chunk documents and their vectors inside a
// collection's indexed key space.
package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/filedex/internal/db"
	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/repository/collection"
)

// listPageSize caps one FT.SEARCH page when walking a file's documents.
const listPageSize = 1000

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	DelMulti(ctx context.Context, keys []string) error
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the document store used by the pipeline and query services.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// ReplaceForFile deletes the file's existing documents and writes the new
// set in one pipelined HSET batch. Chunking a file twice (a re-drive) must
// not duplicate documents, so replacement is the only write mode.
func (r *Repo) ReplaceForFile(ctx context.Context, col, fileID string, docs []domain.Document) error {
	if err := r.DeleteForFile(ctx, col, fileID); err != nil {
		return err
	}

	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		items[i] = db.HashSetItem{
			Key:    docKey(col, docs[i].ID),
			Fields: documentToHash(&docs[i]),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset documents for file %s: %w", fileID, err)
	}
	return nil
}

// SetVector marks the document embedded and stores its vector with the
// provider, model and dimensionality it was produced with.
func (r *Repo) SetVector(ctx context.Context, col string, doc *domain.Document, vector []float32) error {
	fields := embeddingFields(doc)
	fields["__vector"] = db.VectorToBytes(vector)

	if err := r.store.HSet(ctx, docKey(col, doc.ID), fields); err != nil {
		return fmt.Errorf("hset vector %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns one document by ID.
func (r *Repo) Get(ctx context.Context, col, id string) (*domain.Document, error) {
	m, err := r.store.HGetAll(ctx, docKey(col, id))
	if err != nil {
		return nil, fmt.Errorf("hgetall document %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrNotFound
	}
	return documentFromHash(m)
}

// ListByFile returns all documents of a file ordered by ordinal.
func (r *Repo) ListByFile(ctx context.Context, col, fileID string) ([]domain.Document, error) {
	return r.list(ctx, col, fileQuery(fileID))
}

// ListPending returns the file's documents that still lack a vector,
// ordered by ordinal. This is the embed stage work list: already-embedded
// documents are skipped on re-execution.
func (r *Repo) ListPending(ctx context.Context, col, fileID string) ([]domain.Document, error) {
	return r.list(ctx, col, fileQuery(fileID)+" @embedded:{0}")
}

// CountByFile returns total and embedded document counts for a file.
func (r *Repo) CountByFile(ctx context.Context, col, fileID string) (total, embedded int, err error) {
	idx := collection.IndexName(col)

	total, err = r.store.SearchCount(ctx, idx, fileQuery(fileID))
	if err != nil {
		return 0, 0, fmt.Errorf("count documents for file %s: %w", fileID, err)
	}
	embedded, err = r.store.SearchCount(ctx, idx, fileQuery(fileID)+" @embedded:{1}")
	if err != nil {
		return 0, 0, fmt.Errorf("count embedded for file %s: %w", fileID, err)
	}
	return total, embedded, nil
}

// DeleteForFile removes all documents of a file.
func (r *Repo) DeleteForFile(ctx context.Context, col, fileID string) error {
	keys, err := r.keysByFile(ctx, col, fileID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("del documents for file %s: %w", fileID, err)
	}
	return nil
}

// DeleteAll removes every document in the collection. Used when the
// collection itself is deleted.
func (r *Repo) DeleteAll(ctx context.Context, col string) error {
	for {
		result, err := r.store.SearchList(ctx, collection.IndexName(col), "*", 0, listPageSize, nil)
		if err != nil {
			return fmt.Errorf("list documents in %s: %w", col, err)
		}
		if result == nil || len(result.Entries) == 0 {
			return nil
		}

		keys := make([]string, len(result.Entries))
		for i, e := range result.Entries {
			keys[i] = e.Key
		}
		if err := r.store.DelMulti(ctx, keys); err != nil {
			return fmt.Errorf("del documents in %s: %w", col, err)
		}
		if len(result.Entries) < listPageSize {
			return nil
		}
	}
}

func (r *Repo) list(ctx context.Context, col, query string) ([]domain.Document, error) {
	var docs []domain.Document

	offset := 0
	for {
		result, err := r.store.SearchList(ctx, collection.IndexName(col), query, offset, listPageSize, nil)
		if err != nil {
			return nil, fmt.Errorf("search documents: %w", err)
		}
		if result == nil || len(result.Entries) == 0 {
			break
		}

		for _, entry := range result.Entries {
			doc, err := documentFromHash(entry.Fields)
			if err != nil {
				return nil, fmt.Errorf("parse document %s: %w", entry.Key, err)
			}
			docs = append(docs, *doc)
		}

		if len(result.Entries) < listPageSize {
			break
		}
		offset += listPageSize
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Ordinal < docs[j].Ordinal })
	return docs, nil
}

func (r *Repo) keysByFile(ctx context.Context, col, fileID string) ([]string, error) {
	var keys []string

	offset := 0
	for {
		result, err := r.store.SearchList(
			ctx, collection.IndexName(col), fileQuery(fileID), offset, listPageSize, []string{"id"})
		if err != nil {
			return nil, fmt.Errorf("search document keys: %w", err)
		}
		if result == nil || len(result.Entries) == 0 {
			return keys, nil
		}
		for _, e := range result.Entries {
			keys = append(keys, e.Key)
		}
		if len(result.Entries) < listPageSize {
			return keys, nil
		}
		offset += listPageSize
	}
}

func fileQuery(fileID string) string {
	return fmt.Sprintf("@file_id:{%s}", escapeTag(fileID))
}

// escapeTag escapes the characters FT tag queries treat as syntax.
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '-', '.', ':', '@', '{', '}', '|', ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func docKey(col, id string) string {
	return collection.DocPrefix(col) + id
}
