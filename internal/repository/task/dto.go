package task

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// taskToHash converts a domain Task to a map for HSET.
func taskToHash(t *domain.Task) map[string]string {
	return map[string]string{
		"id":           t.ID,
		"file_id":      t.FileID,
		"stage":        string(t.Stage),
		"status":       string(t.Status),
		"attempts":     strconv.Itoa(t.Attempts),
		"last_error":   t.LastError,
		"scheduled_at": strconv.FormatInt(t.ScheduledAt, 10),
		"started_at":   strconv.FormatInt(t.StartedAt, 10),
		"finished_at":  strconv.FormatInt(t.FinishedAt, 10),
	}
}

// taskFromHash hydrates a domain Task from an HGETALL result map.
func taskFromHash(m map[string]string) (*domain.Task, error) {
	attempts, err := strconv.Atoi(m["attempts"])
	if err != nil {
		return nil, fmt.Errorf("invalid attempts: %w", err)
	}
	scheduledAt, err := strconv.ParseInt(m["scheduled_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduled_at: %w", err)
	}

	t := &domain.Task{
		ID:          m["id"],
		FileID:      m["file_id"],
		Stage:       domain.Stage(m["stage"]),
		Status:      domain.TaskStatus(m["status"]),
		Attempts:    attempts,
		LastError:   m["last_error"],
		ScheduledAt: scheduledAt,
	}
	t.StartedAt, _ = strconv.ParseInt(m["started_at"], 10, 64)
	t.FinishedAt, _ = strconv.ParseInt(m["finished_at"], 10, 64)

	return t, nil
}
