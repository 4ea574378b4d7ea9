package filedex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/blob"
	"github.com/kailas-cloud/filedex/internal/chunker"
	"github.com/kailas-cloud/filedex/internal/config"
	"github.com/kailas-cloud/filedex/internal/db"
	dbRedis "github.com/kailas-cloud/filedex/internal/db/redis"
	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/parser"
	"github.com/kailas-cloud/filedex/internal/provider"
	"github.com/kailas-cloud/filedex/internal/queue"
	collectionrepo "github.com/kailas-cloud/filedex/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/filedex/internal/repository/document"
	"github.com/kailas-cloud/filedex/internal/repository/embcache"
	filerepo "github.com/kailas-cloud/filedex/internal/repository/file"
	searchrepo "github.com/kailas-cloud/filedex/internal/repository/search"
	taskrepo "github.com/kailas-cloud/filedex/internal/repository/task"
	collectionuc "github.com/kailas-cloud/filedex/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/filedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/filedex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/filedex/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the filedex SDK entry point. It runs the whole ingestion
// pipeline in-process; Close drains the worker pool.
type Client struct {
	store      db.Store
	dispatcher *queue.Dispatcher

	collections *collectionuc.Service
	ingest      *ingestuc.Service
	query       *queryuc.Service
	health      *healthuc.Service
}

// New creates a filedex Client and connects to the database.
// The provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		blobDir:      "./data/blobs",
		chunkMaxSize: chunker.DefaultMaxSize,
		chunkOverlap: chunker.DefaultOverlap,
		workers:      8,
		maxAttempts:  5,
		defaultTopK:  10,
		maxTopK:      100,
		providers:    make(map[string]config.ProviderConfig),
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("filedex: database address required (use WithRedis)")
	}
	if len(cfg.providers) == 0 {
		return nil, errors.New("filedex: at least one embedding provider required")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("filedex: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("filedex: database not ready: %w", err)
	}

	return wireClient(store, cfg)
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	gateway := provider.NewGateway(config.EmbeddingConfig{Providers: cfg.providers}, cfg.logger)
	if cfg.cacheEmbeddings {
		gateway.WithDecorator(func(e domain.Embedder, scope string) domain.Embedder {
			return embcache.New(e, store, scope, nil, cfg.logger)
		})
	}

	blobs, err := blob.NewStore(cfg.blobDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("filedex: create blob store: %w", err)
	}

	splitter, err := chunker.New(cfg.chunkMaxSize, cfg.chunkOverlap)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("filedex: %w", err)
	}

	collRepo := collectionrepo.New(store)
	if cfg.hnswM > 0 && cfg.hnswEFConstruct > 0 {
		collRepo = collRepo.WithHNSW(collectionrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	fileRepo := filerepo.New(store)
	docRepo := documentrepo.New(store)
	taskRepo := taskrepo.New(store)
	searchRepo := searchrepo.New(store)

	dispatcher, err := queue.NewDispatcher(queue.Config{
		Workers:     cfg.workers,
		MaxAttempts: cfg.maxAttempts,
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  30 * time.Second,
	}, taskRepo, cfg.logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("filedex: create dispatcher: %w", err)
	}

	return &Client{
		store:       store,
		dispatcher:  dispatcher,
		collections: collectionuc.New(collRepo, docRepo, gateway),
		ingest: ingestuc.New(ingestuc.Deps{
			Collections: collRepo,
			Files:       fileRepo,
			Documents:   docRepo,
			Tasks:       taskRepo,
			Blobs:       blobs,
			Queue:       dispatcher,
			Gateway:     gateway,
			Parsers:     parser.DefaultRegistry(),
			Splitter:    splitter,
			Logger:      cfg.logger,
		}),
		query:  queryuc.New(collRepo, gateway, searchRepo, cfg.defaultTopK, cfg.maxTopK),
		health: healthuc.New(store, dispatcher, gateway),
	}, nil
}

// Close drains in-flight pipeline tasks and closes the database connection.
func (c *Client) Close() {
	c.dispatcher.Close()
	c.store.Close()
}

// CreateCollection creates a vector collection. metric is cosine (default),
// l2 or ip; model may be empty to use the provider's default.
func (c *Client) CreateCollection(
	ctx context.Context, name string, dim int, metric, providerName, model string,
) (domain.Collection, error) {
	return c.collections.Create(ctx, name, dim, domain.Metric(metric), providerName, model)
}

// GetCollection returns a collection by name.
func (c *Client) GetCollection(ctx context.Context, name string) (domain.Collection, error) {
	return c.collections.Get(ctx, name)
}

// Collections lists all collections.
func (c *Client) Collections(ctx context.Context) ([]domain.Collection, error) {
	return c.collections.List(ctx)
}

// DeleteCollection removes a collection, its index and all its documents.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.collections.Delete(ctx, name)
}

// UploadFile stores the content and starts the ingestion pipeline. The
// returned file is in the uploaded state; poll FileStatus for progress.
func (c *Client) UploadFile(
	ctx context.Context, collection, name, mime string, content io.Reader,
) (*domain.File, error) {
	return c.ingest.Upload(ctx, collection, name, mime, content)
}

// FileStatus returns the file record, its task history and document counts.
func (c *Client) FileStatus(ctx context.Context, fileID string) (ingestuc.StatusReport, error) {
	return c.ingest.Status(ctx, fileID)
}

// Files pages through a collection's files, newest first.
func (c *Client) Files(
	ctx context.Context, collection string, offset, limit int,
) ([]*domain.File, int, error) {
	return c.ingest.ListFiles(ctx, collection, offset, limit)
}

// DeleteFile removes a file and everything derived from it.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.ingest.DeleteFile(ctx, fileID)
}

// RedriveFile restarts a failed file from the stage that failed.
func (c *Client) RedriveFile(ctx context.Context, fileID string) (*domain.File, error) {
	return c.ingest.Redrive(ctx, fileID)
}

// CancelFile stops further pipeline stages for a non-terminal file.
func (c *Client) CancelFile(ctx context.Context, fileID string) (*domain.File, error) {
	return c.ingest.Cancel(ctx, fileID)
}

// Query embeds text with the collection's provider and returns the topK
// nearest embedded documents. topK <= 0 uses the configured default.
func (c *Client) Query(
	ctx context.Context, collection, text string, topK int,
) ([]domain.QueryHit, error) {
	res, err := c.query.Query(ctx, collection, text, topK)
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// QueryVector searches with a precomputed vector, skipping the embedding
// step. The vector must match the collection's dimensionality.
func (c *Client) QueryVector(
	ctx context.Context, collection string, vector []float32, topK int,
) ([]domain.QueryHit, error) {
	res, err := c.query.QueryVector(ctx, collection, vector, topK)
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// Health reports database connectivity and pipeline queue depth.
func (c *Client) Health(ctx context.Context) healthuc.Report {
	return c.health.Check(ctx)
}
