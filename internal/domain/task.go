package domain

// TaskStatus is the execution state of one asynchronous unit of work.
type TaskStatus string

const (
	// TaskPending means the task is persisted but not yet picked up.
	TaskPending TaskStatus = "pending"
	// TaskRunning means a worker is executing the task.
	TaskRunning TaskStatus = "running"
	// TaskRetrying means a transient failure occurred and the task is
	// scheduled for another attempt after backoff.
	TaskRetrying TaskStatus = "retrying"
	// TaskSucceeded is terminal.
	TaskSucceeded TaskStatus = "succeeded"
	// TaskFailed is terminal: fatal error or retry budget exhausted.
	// Failed tasks are kept with their last error (dead letter).
	TaskFailed TaskStatus = "failed"
)

// Task is one stage execution bound to a file. At-least-once semantics:
// handlers must tolerate re-execution.
type Task struct {
	ID        string
	FileID    string
	Stage     Stage
	Status    TaskStatus
	Attempts  int
	LastError string

	ScheduledAt int64 // unix millis
	StartedAt   int64
	FinishedAt  int64
}
