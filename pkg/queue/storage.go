package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for task creation.
// When task.UniqueKey is set and a non-terminal task with the same key exists,
// implementations must not create a new task; they set task.ID to the existing
// task's ID and return an error wrapping ErrDuplicateTask.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// WorkerRepository defines the interface for worker operations.
// Every mutation after a claim is fenced by the worker ID: a worker whose lease
// expired and was reclaimed gets ErrLeaseLost.
type WorkerRepository interface {
	// ClaimTask atomically claims the earliest visible task from the given queues.
	// Returns ErrNoTaskToClaim when nothing is visible.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks the task completed.
	CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error

	// FailTask records a failed attempt and returns the resulting status:
	// TaskStatusPending when the task was rescheduled with backoff,
	// TaskStatusExhausted when it ran out of attempts.
	FailTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (TaskStatus, error)

	// KillTask exhausts the task immediately regardless of remaining attempts.
	KillTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) error

	// ExtendLock pushes the lease expiry of an active task forward.
	ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error
}

// Inspector gives read access to task state for operators.
type Inspector interface {
	GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error)
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

// Canceler removes a pending task from consideration.
type Canceler interface {
	CancelTask(ctx context.Context, taskID uuid.UUID) error
}

// Storage is the full contract every queue backend implements.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
	Inspector
	Canceler
	Close() error
}

// Clock returns the current time. Storages accept one so tests can move time forward.
type Clock func() time.Time
