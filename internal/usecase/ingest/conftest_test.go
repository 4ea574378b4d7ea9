package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/chunker"
	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/parser"
	"github.com/kailas-cloud/filedex/internal/queue"
)

type mockCollections struct {
	getFn func(ctx context.Context, name string) (domain.Collection, error)
}

func (m *mockCollections) Get(ctx context.Context, name string) (domain.Collection, error) {
	if m.getFn != nil {
		return m.getFn(ctx, name)
	}
	return domain.Collection{
		Name: name, Dim: 4, Metric: domain.MetricCosine,
		Provider: "openai", Model: "text-embedding-3-small",
	}, nil
}

// memFiles is a map-backed Files implementation so stage handlers can run
// end to end against real state transitions.
type memFiles struct {
	mu       sync.Mutex
	files    map[string]domain.File
	segments map[string][]domain.Segment

	updateFn func(ctx context.Context, f *domain.File) error
}

func newMemFiles() *memFiles {
	return &memFiles{
		files:    make(map[string]domain.File),
		segments: make(map[string][]domain.Segment),
	}
}

func (m *memFiles) Create(_ context.Context, f *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.files[f.ID] = *f
	return nil
}

func (m *memFiles) Get(_ context.Context, id string) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := f
	return &cp, nil
}

func (m *memFiles) Update(ctx context.Context, f *domain.File) error {
	if m.updateFn != nil {
		if err := m.updateFn(ctx, f); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.ID]; !ok {
		return domain.ErrNotFound
	}
	m.files[f.ID] = *f
	return nil
}

func (m *memFiles) ListByCollection(
	_ context.Context, collection string, offset, limit int,
) ([]*domain.File, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.File
	for id := range m.files {
		f := m.files[id]
		if f.Collection == collection {
			cp := f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *memFiles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

func (m *memFiles) SaveSegments(_ context.Context, fileID string, segments []domain.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[fileID] = segments
	return nil
}

func (m *memFiles) GetSegments(_ context.Context, fileID string) ([]domain.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	segs, ok := m.segments[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return segs, nil
}

func (m *memFiles) DeleteSegments(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.segments, fileID)
	return nil
}

func (m *memFiles) status(t *testing.T, id string) domain.File {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		t.Fatalf("file %s not stored", id)
	}
	return f
}

type memDocs struct {
	mu   sync.Mutex
	docs map[string][]domain.Document // fileID -> documents

	setVectorFn func(ctx context.Context, col string, doc *domain.Document, vector []float32) error
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string][]domain.Document)}
}

func (m *memDocs) ReplaceForFile(_ context.Context, _, fileID string, docs []domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[fileID] = append([]domain.Document(nil), docs...)
	return nil
}

func (m *memDocs) SetVector(
	ctx context.Context, col string, doc *domain.Document, vector []float32,
) error {
	if m.setVectorFn != nil {
		if err := m.setVectorFn(ctx, col, doc, vector); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs[doc.FileID] {
		if d.ID == doc.ID {
			m.docs[doc.FileID][i] = *doc
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memDocs) ListPending(_ context.Context, _, fileID string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Document
	for _, d := range m.docs[fileID] {
		if !d.Embedded {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) CountByFile(_ context.Context, _, fileID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(m.docs[fileID])
	embedded := 0
	for _, d := range m.docs[fileID] {
		if d.Embedded {
			embedded++
		}
	}
	return total, embedded, nil
}

func (m *memDocs) DeleteForFile(_ context.Context, _, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, fileID)
	return nil
}

type mockTasks struct {
	listFn   func(ctx context.Context, fileID string) ([]domain.Task, error)
	deleteFn func(ctx context.Context, fileID string) error
}

func (m *mockTasks) ListByFile(ctx context.Context, fileID string) ([]domain.Task, error) {
	if m.listFn != nil {
		return m.listFn(ctx, fileID)
	}
	return nil, nil
}

func (m *mockTasks) DeleteForFile(ctx context.Context, fileID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, fileID)
	}
	return nil
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte

	saveErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Save(_ context.Context, fileID string, r io.Reader) (string, int64, error) {
	if m.saveErr != nil {
		return "", 0, m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "blob/" + fileID
	m.blobs[path] = data
	return path, int64(len(data)), nil
}

func (m *memBlobs) Read(_ context.Context, blobPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[blobPath]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", blobPath, domain.ErrNotFound)
	}
	return data, nil
}

func (m *memBlobs) Delete(_ context.Context, blobPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, blobPath)
	return nil
}

// inlineQueue runs submitted tasks synchronously so a test drives the whole
// pipeline in one call stack. Dead letters are delivered like the real
// dispatcher does after budget exhaustion, but without retries.
type inlineQueue struct {
	run       bool // execute handlers; false only records submissions
	submitted []domain.Task
}

func (q *inlineQueue) Submit(
	ctx context.Context, task *domain.Task, h queue.Handler, dead queue.DeadLetter,
) error {
	q.submitted = append(q.submitted, *task)
	if !q.run {
		return nil
	}
	if err := h(ctx, task); err != nil {
		kind := domain.Classify(err)
		if !kind.IsTransient() && dead != nil {
			dead(ctx, task, err)
		}
		return nil
	}
	return nil
}

func (q *inlineQueue) stages() []domain.Stage {
	out := make([]domain.Stage, len(q.submitted))
	for i, t := range q.submitted {
		out[i] = t.Stage
	}
	return out
}

type fakeEmbedder struct {
	dim     int
	batch   int
	calls   int
	embedFn func(texts []string) (domain.BatchEmbeddingResult, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := f.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Vector: res.Vectors[0]}, nil
}

func (f *fakeEmbedder) BatchEmbed(
	_ context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	f.calls++
	if f.embedFn != nil {
		return f.embedFn(texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, f.dim)
	}
	return domain.BatchEmbeddingResult{Vectors: vectors}, nil
}

func (f *fakeEmbedder) Dimensionality() int { return f.dim }
func (f *fakeEmbedder) MaxBatchSize() int   { return f.batch }

type mockGateway struct {
	embedder *fakeEmbedder
	err      error
}

func (m *mockGateway) ForCollection(
	_ context.Context, _ *domain.Collection,
) (domain.Embedder, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.embedder, nil
}

type env struct {
	svc     *Service
	cols    *mockCollections
	files   *memFiles
	docs    *memDocs
	tasks   *mockTasks
	blobs   *memBlobs
	queue   *inlineQueue
	gateway *mockGateway
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	split, err := chunker.New(40, 10)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}

	e := &env{
		cols:    &mockCollections{},
		files:   newMemFiles(),
		docs:    newMemDocs(),
		tasks:   &mockTasks{},
		blobs:   newMemBlobs(),
		queue:   &inlineQueue{run: true},
		gateway: &mockGateway{embedder: &fakeEmbedder{dim: 4, batch: 2}},
	}
	e.svc = New(Deps{
		Collections: e.cols,
		Files:       e.files,
		Documents:   e.docs,
		Tasks:       e.tasks,
		Blobs:       e.blobs,
		Queue:       e.queue,
		Gateway:     e.gateway,
		Parsers:     parser.DefaultRegistry(),
		Splitter:    split,
		Logger:      zap.NewNop(),
	})
	return e
}

func uploadText(t *testing.T, e *env, text string) *domain.File {
	t.Helper()
	f, err := e.svc.Upload(
		context.Background(), "docs", "note.txt", "text/plain", bytes.NewBufferString(text))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return f
}
