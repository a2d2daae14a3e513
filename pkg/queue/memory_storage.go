package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in process memory for tests and local development.
// Expired leases are reclaimed lazily on the next ClaimTask, so no background goroutine runs.
type MemoryStorage struct {
	mu          sync.Mutex
	tasks       map[uuid.UUID]*Task
	uniqueKeys  map[string]uuid.UUID
	deadLetters []DeadLetter

	now     Clock
	backoff BackoffPolicy
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithMemoryClock replaces time.Now, letting tests advance time deterministically.
func WithMemoryClock(now Clock) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// WithMemoryBackoff sets the retry delay policy.
func WithMemoryBackoff(b BackoffPolicy) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if b != nil {
			ms.backoff = b
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:      make(map[uuid.UUID]*Task),
		uniqueKeys: make(map[string]uuid.UUID),
		now:        time.Now,
		backoff:    DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Close is a no-op.
func (ms *MemoryStorage) Close() error {
	return nil
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	if task.UniqueKey != "" {
		if id, ok := ms.uniqueKeys[task.UniqueKey]; ok {
			if existing := ms.tasks[id]; existing != nil && !existing.Status.Terminal() {
				task.ID = existing.ID
				return fmt.Errorf("%w: key %q", ErrDuplicateTask, task.UniqueKey)
			}
		}
		ms.uniqueKeys[task.UniqueKey] = task.ID
	}

	ms.tasks[task.ID] = cloneTask(task)

	return nil
}

// ClaimTask implements WorkerRepository.
// Picks the task that became visible earliest; ties go to the oldest task.
func (ms *MemoryStorage) ClaimTask(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Task

	for _, task := range ms.tasks {
		if !slices.Contains(queues, task.Queue) || !task.Visible(now) {
			continue
		}
		if best == nil || claimsBefore(task, best) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusActive
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	return cloneTask(best), nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(_ context.Context, taskID, workerID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.ownedTask(taskID, workerID)
	if err != nil {
		return err
	}

	now := ms.now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	return nil
}

// FailTask implements WorkerRepository
func (ms *MemoryStorage) FailTask(_ context.Context, taskID, workerID uuid.UUID, errorMsg string) (TaskStatus, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.ownedTask(taskID, workerID)
	if err != nil {
		return "", err
	}

	now := ms.now()
	prev := task.Attempt
	task.Attempt++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.Attempt >= task.MaxAttempts {
		ms.exhaust(task, errorMsg, now)
		return TaskStatusExhausted, nil
	}

	task.Status = TaskStatusPending
	task.ScheduledAt = now.Add(ms.backoff.Delay(prev))

	return TaskStatusPending, nil
}

// KillTask implements WorkerRepository
func (ms *MemoryStorage) KillTask(_ context.Context, taskID, workerID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.ownedTask(taskID, workerID)
	if err != nil {
		return err
	}

	task.Attempt++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.exhaust(task, errorMsg, ms.now())

	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(_ context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.ownedTask(taskID, workerID)
	if err != nil {
		return err
	}

	lockUntil := ms.now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// CancelTask implements Canceler
func (ms *MemoryStorage) CancelTask(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return ErrTaskNotFound
	}
	if task.Status != TaskStatusPending {
		return fmt.Errorf("%w: task %s is %s", ErrTaskNotCancellable, taskID, task.Status)
	}

	now := ms.now()
	task.Status = TaskStatusCancelled
	task.ProcessedAt = &now

	return nil
}

// GetTask implements Inspector
func (ms *MemoryStorage) GetTask(_ context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// ListDeadLetters implements Inspector, newest first
func (ms *MemoryStorage) ListDeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]DeadLetter, 0, len(ms.deadLetters))
	for i := len(ms.deadLetters) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, ms.deadLetters[i])
	}
	return out, nil
}

// ownedTask must be called with ms.mu held.
func (ms *MemoryStorage) ownedTask(taskID, workerID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, ErrTaskNotFound
	}
	if !task.OwnedBy(workerID) {
		return nil, fmt.Errorf("%w: task %s", ErrLeaseLost, taskID)
	}
	return task, nil
}

// exhaust must be called with ms.mu held.
func (ms *MemoryStorage) exhaust(task *Task, errorMsg string, now time.Time) {
	task.Status = TaskStatusExhausted
	task.ProcessedAt = &now
	ms.deadLetters = append(ms.deadLetters, DeadLetter{
		ID:       uuid.New(),
		TaskID:   task.ID,
		Queue:    task.Queue,
		TaskName: task.TaskName,
		Payload:  slices.Clone(task.Payload),
		Error:    errorMsg,
		Attempt:  task.Attempt,
		FailedAt: now,
	})
}

// visibleAt is the instant a claimable task became claimable.
func visibleAt(t *Task) time.Time {
	if t.Status == TaskStatusActive && t.LockedUntil != nil {
		return *t.LockedUntil
	}
	return t.ScheduledAt
}

func claimsBefore(a, b *Task) bool {
	va, vb := visibleAt(a), visibleAt(b)
	if !va.Equal(vb) {
		return va.Before(vb)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func cloneTask(t *Task) *Task {
	c := *t
	c.Payload = slices.Clone(t.Payload)
	if t.LockedUntil != nil {
		v := *t.LockedUntil
		c.LockedUntil = &v
	}
	if t.LockedBy != nil {
		v := *t.LockedBy
		c.LockedBy = &v
	}
	if t.ProcessedAt != nil {
		v := *t.ProcessedAt
		c.ProcessedAt = &v
	}
	if t.Error != nil {
		v := *t.Error
		c.Error = &v
	}
	return &c
}
