// Package chi exposes the HTTP API: collection CRUD, file ingestion and
// similarity queries.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/domain"
	healthuc "github.com/kailas-cloud/filedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/filedex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/filedex/internal/usecase/query"
)

// Collections is the collection lifecycle port.
type Collections interface {
	Create(ctx context.Context, name string, dim int, metric domain.Metric, provider, model string) (domain.Collection, error)
	Get(ctx context.Context, name string) (domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
	Delete(ctx context.Context, name string) error
}

// Ingest is the file pipeline port.
type Ingest interface {
	Upload(ctx context.Context, collection, name, mime string, content io.Reader) (*domain.File, error)
	Status(ctx context.Context, fileID string) (ingestuc.StatusReport, error)
	ListFiles(ctx context.Context, collection string, offset, limit int) ([]*domain.File, int, error)
	DeleteFile(ctx context.Context, fileID string) error
	Redrive(ctx context.Context, fileID string) (*domain.File, error)
	Cancel(ctx context.Context, fileID string) (*domain.File, error)
}

// Query is the similarity search port.
type Query interface {
	Query(ctx context.Context, collection, text string, topK int) (queryuc.Result, error)
	QueryVector(ctx context.Context, collection string, vector []float32, topK int) (queryuc.Result, error)
}

// Health reports component status.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers for the filedex API.
type Server struct {
	collections Collections
	ingest      Ingest
	query       Query
	health      Health
	logger      *zap.Logger

	maxUploadBytes  int64
	defaultPageSize int
	maxPageSize     int

	errorHandlers []errorHandler
}

// Options tune request handling limits.
type Options struct {
	MaxUploadBytes  int64
	DefaultPageSize int
	MaxPageSize     int
}

// NewServer creates an HTTP API server.
func NewServer(
	collections Collections, ingest Ingest, query Query, health Health,
	logger *zap.Logger, opts Options,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}

	s := &Server{
		collections:     collections,
		ingest:          ingest,
		query:           query,
		health:          health,
		logger:          logger,
		maxUploadBytes:  opts.MaxUploadBytes,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrEmptyContent, http.StatusBadRequest, codeEmptyContent),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimensionMismatch),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrProviderAuth, http.StatusBadGateway, codeProviderAuth),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrNotRedrivable, http.StatusConflict, codeNotRedrivable),
		sentinelHandler(domain.ErrFileTerminal, http.StatusConflict, codeFileTerminal),
	}
	return s
}

// Routes registers all API endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/collections", func(r chi.Router) {
			r.Post("/", s.createCollection)
			r.Get("/", s.listCollections)
			r.Route("/{collection}", func(r chi.Router) {
				r.Get("/", s.getCollection)
				r.Delete("/", s.deleteCollection)
				r.Post("/files", s.uploadFile)
				r.Get("/files", s.listFiles)
				r.Post("/query", s.queryCollection)
			})
		})
		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/", s.getFile)
			r.Delete("/", s.deleteFile)
			r.Post("/redrive", s.redriveFile)
			r.Post("/cancel", s.cancelFile)
		})
	})
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	col, err := s.collections.Create(
		r.Context(), req.Name, req.Dim, domain.Metric(req.Metric), req.Provider, req.Model)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, collectionToResponse(col))
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]collectionResponse, len(cols))
	for i, c := range cols {
		items[i] = collectionToResponse(c)
	}
	writeJSON(w, http.StatusOK, collectionListResponse{Items: items, Total: len(items)})
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.collections.Get(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionToResponse(col))
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Delete(r.Context(), chi.URLParam(r, "collection")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadFile handles multipart file uploads. The pipeline runs asynchronously;
// the response is the initial file record, poll GET /files/{id} for progress.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	part, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				"upload exceeds "+strconv.FormatInt(maxErr.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "multipart field \"file\" is required")
		return
	}
	defer part.Close()

	mime := header.Header.Get("Content-Type")
	if override := r.FormValue("mime"); override != "" {
		mime = override
	}

	f, err := s.ingest.Upload(r.Context(), chi.URLParam(r, "collection"), header.Filename, mime, part)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/files/"+f.ID)
	writeJSON(w, http.StatusAccepted, fileToResponse(f))
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := queryInt(r, "limit", s.defaultPageSize)
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	files, total, err := s.ingest.ListFiles(r.Context(), chi.URLParam(r, "collection"), offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]fileResponse, len(files))
	for i, f := range files {
		items[i] = fileToResponse(f)
	}
	writeJSON(w, http.StatusOK, fileListResponse{
		Items: items, Total: total, Offset: offset, Limit: limit,
	})
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingest.Status(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusToResponse(report))
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.DeleteFile(r.Context(), chi.URLParam(r, "fileID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) redriveFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.ingest.Redrive(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, fileToResponse(f))
}

func (s *Server) cancelFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.ingest.Cancel(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fileToResponse(f))
}

func (s *Server) queryCollection(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	collection := chi.URLParam(r, "collection")

	var res queryuc.Result
	var err error
	if len(req.Vector) > 0 {
		res, err = s.query.QueryVector(r.Context(), collection, req.Vector, req.TopK)
	} else {
		res, err = s.query.Query(r.Context(), collection, req.Text, req.TopK)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	hits := make([]queryHitResponse, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = queryHitResponse{
			DocumentID: h.DocumentID,
			FileID:     h.FileID,
			Ordinal:    h.Ordinal,
			Score:      h.Score,
			Text:       h.Text,
		}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Hits: hits, TopK: res.TopK, PromptTokens: res.PromptTokens,
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthToResponse(report))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
