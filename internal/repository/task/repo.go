// Package task persists the pipeline task log. Failed tasks stay around as
// the dead letter record for status reporting and re-drive decisions.
package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// store is the consumer interface for tasks (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	DelMulti(ctx context.Context, keys []string) error
}

// Repo implements queue.Store and the task log reads of the ingest service.
type Repo struct {
	store store
}

// New creates a task repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveTask upserts one task state. Called on every transition.
func (r *Repo) SaveTask(ctx context.Context, t *domain.Task) error {
	if err := r.store.HSet(ctx, taskKey(t.FileID, t.ID), taskToHash(t)); err != nil {
		return fmt.Errorf("hset task %s: %w", t.ID, err)
	}
	return nil
}

// ListByFile returns the file's tasks ordered by schedule time, oldest first.
func (r *Repo) ListByFile(ctx context.Context, fileID string) ([]domain.Task, error) {
	keys, err := r.store.Scan(ctx, taskKey(fileID, "*"))
	if err != nil {
		return nil, fmt.Errorf("scan tasks for file %s: %w", fileID, err)
	}
	if len(keys) == 0 {
		return []domain.Task{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		t, err := taskFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse task %s: %w", keys[i], err)
		}
		tasks = append(tasks, *t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ScheduledAt != tasks[j].ScheduledAt {
			return tasks[i].ScheduledAt < tasks[j].ScheduledAt
		}
		return tasks[i].ID < tasks[j].ID
	})

	return tasks, nil
}

// DeleteForFile removes the file's task log.
func (r *Repo) DeleteForFile(ctx context.Context, fileID string) error {
	keys, err := r.store.Scan(ctx, taskKey(fileID, "*"))
	if err != nil {
		return fmt.Errorf("scan tasks for file %s: %w", fileID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("del tasks for file %s: %w", fileID, err)
	}
	return nil
}

func taskKey(fileID, taskID string) string {
	return fmt.Sprintf("%stask:%s:%s", domain.KeyPrefix, fileID, taskID)
}
