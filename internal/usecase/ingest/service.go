// Package ingest orchestrates the file pipeline: upload, parse, chunk,
// embed and finalize, plus the user-facing file operations.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/metrics"
)

// errorDetailMax bounds the persisted error message so a pathological
// provider response cannot bloat the file record.
const errorDetailMax = 512

// Deps bundles the collaborators of the ingest service.
type Deps struct {
	Collections Collections
	Files       Files
	Documents   Documents
	Tasks       Tasks
	Blobs       Blobs
	Queue       Dispatcher
	Gateway     Gateway
	Parsers     Parsers
	Splitter    Splitter
	Logger      *zap.Logger
}

// Service drives files through the ingestion pipeline.
type Service struct {
	collections Collections
	files       Files
	docs        Documents
	tasks       Tasks
	blobs       Blobs
	queue       Dispatcher
	gateway     Gateway
	parsers     Parsers
	splitter    Splitter
	log         *zap.Logger
}

// New creates an ingest service.
func New(d Deps) *Service {
	return &Service{
		collections: d.Collections,
		files:       d.Files,
		docs:        d.Documents,
		tasks:       d.Tasks,
		blobs:       d.Blobs,
		queue:       d.Queue,
		gateway:     d.Gateway,
		parsers:     d.Parsers,
		splitter:    d.Splitter,
		log:         d.Logger,
	}
}

// StatusReport is the full processing picture of one file.
type StatusReport struct {
	File         *domain.File
	Tasks        []domain.Task
	TotalDocs    int
	EmbeddedDocs int
}

// Upload stores the raw bytes, creates the file record and enqueues parsing.
// Unsupported MIME types are rejected before anything is written.
func (s *Service) Upload(
	ctx context.Context, collection, name, mime string, content io.Reader,
) (*domain.File, error) {
	col, err := s.collections.Get(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	if _, err := s.parsers.For(mime); err != nil {
		return nil, fmt.Errorf("mime %q: %w", mime, err)
	}

	id := uuid.NewString()
	path, size, err := s.blobs.Save(ctx, id, content)
	if err != nil {
		return nil, fmt.Errorf("save blob: %w", err)
	}

	now := time.Now().UnixMilli()
	f := &domain.File{
		ID:         id,
		Collection: col.Name,
		Name:       name,
		MIME:       mime,
		Size:       size,
		BlobPath:   path,
		Status:     domain.FileUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.files.Create(ctx, f); err != nil {
		if derr := s.blobs.Delete(ctx, path); derr != nil {
			s.log.Warn("orphan blob left after failed create",
				zap.String("file_id", id), zap.Error(derr))
		}
		return nil, fmt.Errorf("create file: %w", err)
	}

	if err := s.dispatch(ctx, f.ID, domain.StageParse); err != nil {
		return nil, fmt.Errorf("enqueue parse: %w", err)
	}

	s.log.Info("file uploaded",
		zap.String("file_id", f.ID),
		zap.String("collection", f.Collection),
		zap.String("mime", mime),
		zap.Int64("size", size))
	return f, nil
}

// Status returns the file record, its task history and document counts.
func (s *Service) Status(ctx context.Context, fileID string) (StatusReport, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("get file: %w", err)
	}

	tasks, err := s.tasks.ListByFile(ctx, fileID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("list tasks: %w", err)
	}

	total, embedded, err := s.docs.CountByFile(ctx, f.Collection, fileID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return StatusReport{}, fmt.Errorf("count documents: %w", err)
	}

	return StatusReport{File: f, Tasks: tasks, TotalDocs: total, EmbeddedDocs: embedded}, nil
}

// ListFiles pages through a collection's files, newest first.
func (s *Service) ListFiles(
	ctx context.Context, collection string, offset, limit int,
) ([]*domain.File, int, error) {
	if _, err := s.collections.Get(ctx, collection); err != nil {
		return nil, 0, fmt.Errorf("get collection: %w", err)
	}

	files, total, err := s.files.ListByCollection(ctx, collection, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}
	return files, total, nil
}

// DeleteFile removes a file and everything derived from it: documents,
// segments, task history and the stored bytes. In-flight handlers observe
// the missing record and drop their task.
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}

	if err := s.docs.DeleteForFile(ctx, f.Collection, fileID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if err := s.tasks.DeleteForFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if err := s.files.DeleteSegments(ctx, fileID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	if err := s.blobs.Delete(ctx, f.BlobPath); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.files.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	s.log.Info("file deleted", zap.String("file_id", fileID))
	return nil
}

// Redrive restarts a failed file from the stage that failed. Artifacts
// committed by earlier stages are reused, not rebuilt.
func (s *Service) Redrive(ctx context.Context, fileID string) (*domain.File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if f.Status != domain.FileFailed {
		return nil, fmt.Errorf("status %q: %w", f.Status, domain.ErrNotRedrivable)
	}

	stage := f.FailedStage
	if !domain.ValidStage(stage) {
		stage = domain.StageParse
	}

	f.Status = stage.Status()
	f.FailedStage = ""
	f.ErrorKind = ""
	f.ErrorDetail = ""
	f.UpdatedAt = time.Now().UnixMilli()
	if err := s.files.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("update file: %w", err)
	}

	if err := s.dispatch(ctx, f.ID, stage); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", stage, err)
	}

	s.log.Info("file redriven",
		zap.String("file_id", fileID), zap.String("stage", string(stage)))
	return f, nil
}

// Cancel marks a non-terminal file cancelled. Running stage work is not
// interrupted; its output is ignored and no further stage is dispatched.
func (s *Service) Cancel(ctx context.Context, fileID string) (*domain.File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if f.Status.Terminal() {
		return nil, fmt.Errorf("status %q: %w", f.Status, domain.ErrFileTerminal)
	}

	f.Status = domain.FileCancelled
	f.UpdatedAt = time.Now().UnixMilli()
	if err := s.files.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("update file: %w", err)
	}

	metrics.PipelineFilesTotal.WithLabelValues(string(domain.FileCancelled)).Inc()
	s.log.Info("file cancelled", zap.String("file_id", fileID))
	return f, nil
}

// dispatch persists and enqueues one stage task for a file.
func (s *Service) dispatch(ctx context.Context, fileID string, stage domain.Stage) error {
	task := &domain.Task{
		ID:     uuid.NewString(),
		FileID: fileID,
		Stage:  stage,
	}
	return s.queue.Submit(ctx, task, s.handleTask, s.onDeadLetter)
}

func truncateDetail(msg string) string {
	if len(msg) <= errorDetailMax {
		return msg
	}
	return msg[:errorDetailMax]
}
