package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer handles task enqueueing
type Enqueuer struct {
	repo               EnqueuerRepository
	defaultQueue       string
	defaultMaxAttempts int8
	now                Clock
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:       DefaultQueueName,
		defaultMaxAttempts: DefaultMaxAttempts,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:               repo,
		defaultQueue:       options.defaultQueue,
		defaultMaxAttempts: options.defaultMaxAttempts,
		now:                options.now,
	}, nil
}

// Enqueue adds a new task to the queue and returns its ID.
// The task becomes claimable no earlier than now+delay (WithDelay) or the
// given instant (WithScheduledAt).
//
// With WithUniqueKey, a live duplicate is not created again: the existing
// task's ID is returned together with an error wrapping ErrDuplicateTask.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:       e.defaultQueue,
		maxAttempts: e.defaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.maxAttempts < 1 || options.maxAttempts > 10 {
		return uuid.Nil, ErrInvalidMaxAttempts
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		if errors.Is(err, ErrDuplicateTask) {
			return task.ID, err
		}
		return uuid.Nil, fmt.Errorf("%w: task %q in queue %q: %w", ErrTaskCreate, task.TaskName, task.Queue, err)
	}

	return task.ID, nil
}

// buildTask constructs a Task from payload and options
func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: type %T: %w", ErrPayloadMarshal, payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = qualifiedStructName(payload)
	}

	now := e.now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = now.Add(options.delay)
	}

	return &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		TaskName:    taskName,
		UniqueKey:   options.uniqueKey,
		Payload:     payloadBytes,
		Status:      TaskStatusPending,
		Attempt:     0,
		MaxAttempts: options.maxAttempts,
		ScheduledAt: scheduledAt.UTC(),
		CreatedAt:   now.UTC(),
	}, nil
}
