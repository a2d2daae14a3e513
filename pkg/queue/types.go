package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// DefaultMaxAttempts is the number of failed deliveries after which a task is exhausted.
const DefaultMaxAttempts int8 = 3

// TaskStatus represents the lifecycle state of a task.
//
//	pending -> active -> completed
//	                  -> pending (failed, retries left, delayed by backoff)
//	                  -> failed-exhausted
//	pending -> cancelled
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusExhausted TaskStatus = "failed-exhausted"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusExhausted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusActive, TaskStatusCompleted, TaskStatusExhausted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Task is a unit of delayed work. The queue storage owns it exclusively;
// producers and workers only ever hold copies.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskName    string     `json:"task_name"`
	UniqueKey   string     `json:"unique_key,omitempty"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	Attempt     int8       `json:"attempt"`
	MaxAttempts int8       `json:"max_attempts"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Visible reports whether a worker may claim the task at now.
// Active tasks become visible again once their lease has expired.
func (t *Task) Visible(now time.Time) bool {
	switch t.Status {
	case TaskStatusPending:
		return !t.ScheduledAt.After(now)
	case TaskStatusActive:
		return t.LockedUntil != nil && t.LockedUntil.Before(now)
	default:
		return false
	}
}

// OwnedBy reports whether workerID holds the current lease.
func (t *Task) OwnedBy(workerID uuid.UUID) bool {
	return t.Status == TaskStatusActive && t.LockedBy != nil && *t.LockedBy == workerID
}

// DeadLetter records a task that exhausted its attempts.
// Kept for manual inspection; nothing consumes it automatically.
type DeadLetter struct {
	ID       uuid.UUID `json:"id"`
	TaskID   uuid.UUID `json:"task_id"`
	Queue    string    `json:"queue"`
	TaskName string    `json:"task_name"`
	Payload  []byte    `json:"payload,omitempty"`
	Error    string    `json:"error"`
	Attempt  int8      `json:"attempt"`
	FailedAt time.Time `json:"failed_at"`
}
