package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/blob"
	"github.com/kailas-cloud/filedex/internal/chunker"
	"github.com/kailas-cloud/filedex/internal/config"
	"github.com/kailas-cloud/filedex/internal/db"
	dbRedis "github.com/kailas-cloud/filedex/internal/db/redis"
	"github.com/kailas-cloud/filedex/internal/domain"
	logpkg "github.com/kailas-cloud/filedex/internal/logger"
	"github.com/kailas-cloud/filedex/internal/metrics"
	"github.com/kailas-cloud/filedex/internal/parser"
	"github.com/kailas-cloud/filedex/internal/provider"
	"github.com/kailas-cloud/filedex/internal/queue"
	collectionrepo "github.com/kailas-cloud/filedex/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/filedex/internal/repository/document"
	"github.com/kailas-cloud/filedex/internal/repository/embcache"
	filerepo "github.com/kailas-cloud/filedex/internal/repository/file"
	searchrepo "github.com/kailas-cloud/filedex/internal/repository/search"
	taskrepo "github.com/kailas-cloud/filedex/internal/repository/task"
	chiTransport "github.com/kailas-cloud/filedex/internal/transport/chi"
	collectionuc "github.com/kailas-cloud/filedex/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/filedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/filedex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/filedex/internal/usecase/query"
	"github.com/kailas-cloud/filedex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting filedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Embedding provider gateway — composition root. Every embedder is
	// wrapped with the KV-backed cache so identical text is embedded once.
	gateway := provider.NewGateway(cfg.Embedding, logger).
		WithDecorator(func(e domain.Embedder, scope string) domain.Embedder {
			return embcache.New(e, store, scope, metrics.EmbeddingCacheTotal, logger)
		})
	if len(gateway.Names()) == 0 {
		logger.Fatal("No embedding providers configured")
	}
	logger.Info("Embedding gateway created", zap.Strings("providers", gateway.Names()))

	// Blob storage for raw uploads
	blobs, err := blob.NewStore(cfg.Blob.Dir)
	if err != nil {
		logger.Fatal("Failed to create blob store", zap.Error(err))
	}

	// Create repositories (domain-native, no adapters)
	collRepo := collectionrepo.New(store).WithHNSW(collectionrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	fileRepo := filerepo.New(store)
	docRepo := documentrepo.New(store)
	taskRepo := taskrepo.New(store)
	searchRepo := searchrepo.New(store)

	// Task dispatcher — shared worker pool for all pipeline stages
	dispatcher, err := queue.NewDispatcher(queue.Config{
		Workers:     cfg.Queue.Workers,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BackoffBase: time.Duration(cfg.Queue.BackoffBaseMS) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.Queue.BackoffMaxMS) * time.Millisecond,
	}, taskRepo, logger)
	if err != nil {
		logger.Fatal("Failed to create dispatcher", zap.Error(err))
	}
	defer dispatcher.Close()

	splitter, err := chunker.New(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	// Create use case services
	collSvc := collectionuc.New(collRepo, docRepo, gateway)
	ingestSvc := ingestuc.New(ingestuc.Deps{
		Collections: collRepo,
		Files:       fileRepo,
		Documents:   docRepo,
		Tasks:       taskRepo,
		Blobs:       blobs,
		Queue:       dispatcher,
		Gateway:     gateway,
		Parsers:     parser.DefaultRegistry(),
		Splitter:    splitter,
		Logger:      logger,
	})
	querySvc := queryuc.New(collRepo, gateway, searchRepo,
		cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize)
	healthSvc := healthuc.New(store, dispatcher, gateway)

	// Create chi server
	server := chiTransport.NewServer(collSvc, ingestSvc, querySvc, healthSvc, logger,
		chiTransport.Options{
			MaxUploadBytes:  int64(cfg.HTTP.MaxUploadMB) << 20,
			DefaultPageSize: cfg.Index.DefaultPageSize,
			MaxPageSize:     cfg.Index.MaxPageSize,
		})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
