package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/metrics"
)

// handleTask routes a dequeued task to its stage handler. The file record is
// the source of truth: a deleted file drops the task, a cancelled one
// succeeds it without doing work so nothing further is dispatched.
func (s *Service) handleTask(ctx context.Context, task *domain.Task) error {
	f, err := s.files.Get(ctx, task.FileID)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Info("dropping task for deleted file",
			zap.String("file_id", task.FileID), zap.String("stage", string(task.Stage)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if f.Status == domain.FileCancelled {
		s.log.Info("skipping stage for cancelled file",
			zap.String("file_id", f.ID), zap.String("stage", string(task.Stage)))
		return nil
	}

	// Stage duration is observed by the dispatcher around the handler call.
	switch task.Stage {
	case domain.StageParse:
		return s.runParse(ctx, f)
	case domain.StageChunk:
		return s.runChunk(ctx, f)
	case domain.StageEmbed:
		return s.runEmbed(ctx, f)
	case domain.StageFinalize:
		return s.runFinalize(ctx, f)
	default:
		return fmt.Errorf("unknown stage %q", task.Stage)
	}
}

// runParse reads the stored bytes, extracts text segments and persists them
// so later stages never touch the blob again.
func (s *Service) runParse(ctx context.Context, f *domain.File) error {
	if err := s.setStatus(ctx, f, domain.FileParsing); err != nil {
		return err
	}

	data, err := s.blobs.Read(ctx, f.BlobPath)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}

	pages, err := s.parsers.Parse(ctx, f.MIME, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", f.MIME, err)
	}

	segments := make([]domain.Segment, len(pages))
	for i, p := range pages {
		segments[i] = domain.Segment{Ordinal: i, Text: p.Text, Page: p.Number}
	}
	if err := s.files.SaveSegments(ctx, f.ID, segments); err != nil {
		return fmt.Errorf("save segments: %w", err)
	}

	s.log.Info("file parsed",
		zap.String("file_id", f.ID), zap.Int("segments", len(segments)))
	return s.dispatch(ctx, f.ID, domain.StageChunk)
}

// runChunk splits the persisted segments into documents. ReplaceForFile makes
// re-execution idempotent: a retried chunk stage rewrites the same set.
func (s *Service) runChunk(ctx context.Context, f *domain.File) error {
	if err := s.setStatus(ctx, f, domain.FileChunking); err != nil {
		return err
	}

	segments, err := s.files.GetSegments(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}

	chunks := s.splitter.Split(segments)
	if len(chunks) == 0 {
		return fmt.Errorf("file %s: %w", f.ID, domain.ErrEmptyContent)
	}

	docs := make([]domain.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = domain.Document{
			ID:        uuid.NewString(),
			FileID:    f.ID,
			Ordinal:   c.Ordinal,
			Text:      c.Text,
			Page:      c.Page,
			SpanStart: c.SpanStart,
			SpanEnd:   c.SpanEnd,
		}
	}
	if err := s.docs.ReplaceForFile(ctx, f.Collection, f.ID, docs); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}

	s.log.Info("file chunked",
		zap.String("file_id", f.ID), zap.Int("documents", len(docs)))
	return s.dispatch(ctx, f.ID, domain.StageEmbed)
}

// runEmbed vectorizes every document still lacking an embedding, in provider
// sized batches. Each vector is committed individually, so a retry resumes
// from the pending remainder instead of re-embedding the whole file.
func (s *Service) runEmbed(ctx context.Context, f *domain.File) error {
	if err := s.setStatus(ctx, f, domain.FileEmbedding); err != nil {
		return err
	}

	col, err := s.collections.Get(ctx, f.Collection)
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}
	embedder, err := s.gateway.ForCollection(ctx, &col)
	if err != nil {
		return fmt.Errorf("resolve embedder: %w", err)
	}

	pending, err := s.docs.ListPending(ctx, col.Name, f.ID)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	batchSize := embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(pending); start += batchSize {
		if cancelled, err := s.isCancelled(ctx, f.ID); err != nil {
			return err
		} else if cancelled {
			s.log.Info("embedding stopped, file cancelled", zap.String("file_id", f.ID))
			return nil
		}

		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text
		}
		res, err := embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(res.Vectors) != len(batch) {
			return fmt.Errorf("embed batch [%d:%d]: got %d vectors for %d texts: %w",
				start, end, len(res.Vectors), len(batch), domain.ErrProviderUnavailable)
		}

		now := time.Now().UnixMilli()
		for i := range batch {
			doc := batch[i]
			doc.Embedded = true
			doc.Provider = col.Provider
			doc.Model = col.Model
			doc.Dim = len(res.Vectors[i])
			doc.EmbeddedAt = now
			if err := s.docs.SetVector(ctx, col.Name, &doc, res.Vectors[i]); err != nil {
				return fmt.Errorf("store vector %s: %w", doc.ID, err)
			}
		}
	}

	s.log.Info("file embedded",
		zap.String("file_id", f.ID), zap.Int("documents", len(pending)))
	return s.dispatch(ctx, f.ID, domain.StageFinalize)
}

// runFinalize derives the terminal status from the per-document outcomes.
func (s *Service) runFinalize(ctx context.Context, f *domain.File) error {
	total, embedded, err := s.docs.CountByFile(ctx, f.Collection, f.ID)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}

	if total == 0 {
		s.markFailed(ctx, f, domain.StageChunk,
			fmt.Errorf("no documents produced: %w", domain.ErrEmptyContent))
		return nil
	}
	if embedded < total {
		s.markFailed(ctx, f, domain.StageEmbed,
			fmt.Errorf("%d of %d documents embedded: %w",
				embedded, total, domain.ErrProviderUnavailable))
		return nil
	}

	f.Status = domain.FileReady
	f.FailedStage = ""
	f.ErrorKind = ""
	f.ErrorDetail = ""
	f.UpdatedAt = time.Now().UnixMilli()
	if err := s.files.Update(ctx, f); err != nil {
		return fmt.Errorf("update file: %w", err)
	}

	metrics.PipelineFilesTotal.WithLabelValues(string(domain.FileReady)).Inc()
	s.log.Info("file ready",
		zap.String("file_id", f.ID), zap.Int("documents", total))
	return nil
}

// onDeadLetter is invoked by the dispatcher when a task is beyond retry.
// The file takes the blame unless it was already cancelled or deleted.
func (s *Service) onDeadLetter(ctx context.Context, task *domain.Task, cause error) {
	f, err := s.files.Get(ctx, task.FileID)
	if err != nil {
		s.log.Warn("dead letter for unloadable file",
			zap.String("file_id", task.FileID), zap.Error(err))
		return
	}
	if f.Status == domain.FileCancelled {
		return
	}
	s.markFailed(ctx, f, task.Stage, cause)
}

// markFailed transitions a file to the failed terminal state with the stage
// and classified cause recorded for status reporting and re-drive.
func (s *Service) markFailed(ctx context.Context, f *domain.File, stage domain.Stage, cause error) {
	f.Status = domain.FileFailed
	f.FailedStage = stage
	f.ErrorKind = domain.Classify(cause)
	f.ErrorDetail = truncateDetail(cause.Error())
	f.UpdatedAt = time.Now().UnixMilli()
	if err := s.files.Update(ctx, f); err != nil {
		s.log.Error("failed to persist failed status",
			zap.String("file_id", f.ID), zap.Error(err))
		return
	}

	metrics.PipelineFilesTotal.WithLabelValues(string(domain.FileFailed)).Inc()
	s.log.Warn("file failed",
		zap.String("file_id", f.ID),
		zap.String("stage", string(stage)),
		zap.String("kind", string(f.ErrorKind)),
		zap.String("detail", f.ErrorDetail))
}

func (s *Service) setStatus(ctx context.Context, f *domain.File, status domain.FileStatus) error {
	f.Status = status
	f.UpdatedAt = time.Now().UnixMilli()
	if err := s.files.Update(ctx, f); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (s *Service) isCancelled(ctx context.Context, fileID string) (bool, error) {
	f, err := s.files.Get(ctx, fileID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reload file: %w", err)
	}
	return f.Status == domain.FileCancelled, nil
}
