package ingest

import (
	"context"
	"io"

	"github.com/kailas-cloud/filedex/internal/chunker"
	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/parser"
	"github.com/kailas-cloud/filedex/internal/queue"
)

// Collections resolves collection metadata.
type Collections interface {
	Get(ctx context.Context, name string) (domain.Collection, error)
}

// Files defines the storage contract for file records and parse output.
type Files interface {
	Create(ctx context.Context, f *domain.File) error
	Get(ctx context.Context, id string) (*domain.File, error)
	Update(ctx context.Context, f *domain.File) error
	ListByCollection(ctx context.Context, collection string, offset, limit int) ([]*domain.File, int, error)
	Delete(ctx context.Context, id string) error

	SaveSegments(ctx context.Context, fileID string, segments []domain.Segment) error
	GetSegments(ctx context.Context, fileID string) ([]domain.Segment, error)
	DeleteSegments(ctx context.Context, fileID string) error
}

// Documents defines the storage contract for chunk documents.
type Documents interface {
	ReplaceForFile(ctx context.Context, col, fileID string, docs []domain.Document) error
	SetVector(ctx context.Context, col string, doc *domain.Document, vector []float32) error
	ListPending(ctx context.Context, col, fileID string) ([]domain.Document, error)
	CountByFile(ctx context.Context, col, fileID string) (total, embedded int, err error)
	DeleteForFile(ctx context.Context, col, fileID string) error
}

// Tasks reads and prunes the per-file task log.
type Tasks interface {
	ListByFile(ctx context.Context, fileID string) ([]domain.Task, error)
	DeleteForFile(ctx context.Context, fileID string) error
}

// Blobs stores raw uploaded bytes.
type Blobs interface {
	Save(ctx context.Context, fileID string, r io.Reader) (path string, size int64, err error)
	Read(ctx context.Context, blobPath string) ([]byte, error)
	Delete(ctx context.Context, blobPath string) error
}

// Dispatcher schedules stage tasks for asynchronous execution.
type Dispatcher interface {
	Submit(ctx context.Context, task *domain.Task, h queue.Handler, dead queue.DeadLetter) error
}

// Gateway builds embedders for collections.
type Gateway interface {
	ForCollection(ctx context.Context, col *domain.Collection) (domain.Embedder, error)
}

// Parsers extracts text pages by MIME type.
type Parsers interface {
	For(mime string) (parser.Parser, error)
	Parse(ctx context.Context, mime string, data []byte) ([]parser.Page, error)
}

// Splitter cuts segments into chunks.
type Splitter interface {
	Split(segments []domain.Segment) []chunker.Chunk
}
