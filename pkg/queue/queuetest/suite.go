// Package queuetest holds the behaviour every queue.Storage backend must share.
// Backend packages call RunStorageSuite from their own tests.
package queuetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/queue"
)

// Factory builds a fresh storage reading time from now and delaying retries by backoff.
// Implementations should register cleanup with t.Cleanup.
type Factory func(t *testing.T, now queue.Clock, backoff queue.BackoffPolicy) queue.Storage

// Epoch is the instant every suite clock starts at.
var Epoch = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

const (
	lease       = 30 * time.Second
	backoffBase = time.Second
)

type env struct {
	store queue.Storage
	clock *Clock
	queue string
}

func setup(t *testing.T, factory Factory) *env {
	t.Helper()
	clock := NewClock(Epoch)
	store := factory(t, clock.Now, queue.ExponentialBackoff{Base: backoffBase})
	require.NotNil(t, store)
	return &env{store: store, clock: clock, queue: "q-" + uuid.NewString()}
}

func (e *env) newTask(t *testing.T, scheduledAt time.Time, opts ...func(*queue.Task)) *queue.Task {
	t.Helper()
	task := &queue.Task{
		ID:          uuid.New(),
		Queue:       e.queue,
		TaskName:    "suite.task",
		Payload:     []byte(`{"booking_id":"b-1"}`),
		Status:      queue.TaskStatusPending,
		MaxAttempts: queue.DefaultMaxAttempts,
		ScheduledAt: scheduledAt,
		CreatedAt:   e.clock.Now(),
	}
	for _, opt := range opts {
		opt(task)
	}
	require.NoError(t, e.store.CreateTask(context.Background(), task))
	return task
}

func (e *env) claim(t *testing.T, workerID uuid.UUID) *queue.Task {
	t.Helper()
	task, err := e.store.ClaimTask(context.Background(), workerID, []string{e.queue}, lease)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func (e *env) assertEmpty(t *testing.T) {
	t.Helper()
	task, err := e.store.ClaimTask(context.Background(), uuid.New(), []string{e.queue}, lease)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	assert.Nil(t, task)
}

func (e *env) status(t *testing.T, id uuid.UUID) *queue.Task {
	t.Helper()
	task, err := e.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

// RunStorageSuite runs the shared storage contract against factory.
func RunStorageSuite(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)

		created := e.newTask(t, e.clock.Now().Add(time.Hour), func(task *queue.Task) {
			task.UniqueKey = "booking:b-1"
		})

		got := e.status(t, created.ID)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, e.queue, got.Queue)
		assert.Equal(t, "suite.task", got.TaskName)
		assert.Equal(t, "booking:b-1", got.UniqueKey)
		assert.JSONEq(t, `{"booking_id":"b-1"}`, string(got.Payload))
		assert.Equal(t, queue.TaskStatusPending, got.Status)
		assert.Equal(t, int8(0), got.Attempt)
		assert.Equal(t, queue.DefaultMaxAttempts, got.MaxAttempts)
		assert.True(t, created.ScheduledAt.Equal(got.ScheduledAt))
	})

	t.Run("get unknown task", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)

		_, err := e.store.GetTask(ctx, uuid.New())
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	})

	t.Run("task is invisible until its scheduled time", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)

		task := e.newTask(t, e.clock.Now().Add(10*time.Minute))
		e.assertEmpty(t)

		e.clock.Advance(10*time.Minute - time.Millisecond)
		e.assertEmpty(t)

		e.clock.Advance(time.Millisecond)
		claimed := e.claim(t, uuid.New())
		assert.Equal(t, task.ID, claimed.ID)
		assert.Equal(t, queue.TaskStatusActive, claimed.Status)
	})

	t.Run("claims earliest visible task first", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		now := e.clock.Now()

		late := e.newTask(t, now.Add(-time.Minute))
		early := e.newTask(t, now.Add(-time.Hour))
		e.newTask(t, now.Add(time.Hour))

		assert.Equal(t, early.ID, e.claim(t, uuid.New()).ID)
		assert.Equal(t, late.ID, e.claim(t, uuid.New()).ID)
		e.assertEmpty(t)
	})

	t.Run("claims only from requested queues", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)

		other := "other-" + uuid.NewString()
		e.newTask(t, e.clock.Now(), func(task *queue.Task) { task.Queue = other })
		e.assertEmpty(t)

		task, err := e.store.ClaimTask(ctx, uuid.New(), []string{e.queue, other}, lease)
		require.NoError(t, err)
		assert.Equal(t, other, task.Queue)
	})

	t.Run("concurrent claims hand a task to exactly one worker", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		e.newTask(t, e.clock.Now())

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed int
			errs    []error
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				task, err := e.store.ClaimTask(ctx, uuid.New(), []string{e.queue}, lease)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil && task != nil:
					claimed++
				case errors.Is(err, queue.ErrNoTaskToClaim):
				default:
					errs = append(errs, err)
				}
			}()
		}
		wg.Wait()

		assert.Empty(t, errs)
		assert.Equal(t, 1, claimed)
	})

	t.Run("complete", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now())

		e.claim(t, worker)
		require.NoError(t, e.store.CompleteTask(ctx, task.ID, worker))

		got := e.status(t, task.ID)
		assert.Equal(t, queue.TaskStatusCompleted, got.Status)
		assert.NotNil(t, got.ProcessedAt)

		e.clock.Advance(time.Hour)
		e.assertEmpty(t)
	})

	t.Run("failure reschedules with backoff", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now())

		e.claim(t, worker)
		status, err := e.store.FailTask(ctx, task.ID, worker, "smtp timeout")
		require.NoError(t, err)
		assert.Equal(t, queue.TaskStatusPending, status)

		got := e.status(t, task.ID)
		assert.Equal(t, queue.TaskStatusPending, got.Status)
		assert.Equal(t, int8(1), got.Attempt)
		require.NotNil(t, got.Error)
		assert.Equal(t, "smtp timeout", *got.Error)
		assert.True(t, e.clock.Now().Add(backoffBase).Equal(got.ScheduledAt))

		e.assertEmpty(t)
		e.clock.Advance(backoffBase)
		assert.Equal(t, task.ID, e.claim(t, worker).ID)
	})

	t.Run("two failures then success completes on third attempt", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now())

		for i := range 2 {
			e.claim(t, worker)
			status, err := e.store.FailTask(ctx, task.ID, worker, "provider unavailable")
			require.NoError(t, err)
			require.Equal(t, queue.TaskStatusPending, status)
			e.clock.Advance(backoffBase << i)
		}

		claimed := e.claim(t, worker)
		assert.Equal(t, int8(2), claimed.Attempt)
		require.NoError(t, e.store.CompleteTask(ctx, task.ID, worker))

		got := e.status(t, task.ID)
		assert.Equal(t, queue.TaskStatusCompleted, got.Status)
		assert.Equal(t, int8(2), got.Attempt)
	})

	t.Run("exhausts after max attempts and records dead letter", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now())

		var last queue.TaskStatus
		for i := range int(queue.DefaultMaxAttempts) {
			e.claim(t, worker)
			status, err := e.store.FailTask(ctx, task.ID, worker, "provider unavailable")
			require.NoError(t, err)
			last = status
			e.clock.Advance(backoffBase << i)
		}
		assert.Equal(t, queue.TaskStatusExhausted, last)

		got := e.status(t, task.ID)
		assert.Equal(t, queue.TaskStatusExhausted, got.Status)
		assert.Equal(t, queue.DefaultMaxAttempts, got.Attempt)

		e.clock.Advance(24 * time.Hour)
		e.assertEmpty(t)

		letters, err := e.store.ListDeadLetters(ctx, 0)
		require.NoError(t, err)
		var found *queue.DeadLetter
		for i := range letters {
			if letters[i].TaskID == task.ID {
				found = &letters[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "provider unavailable", found.Error)
		assert.Equal(t, queue.DefaultMaxAttempts, found.Attempt)
		assert.Equal(t, e.queue, found.Queue)
	})

	t.Run("retry delays strictly increase", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now(), func(task *queue.Task) { task.MaxAttempts = 6 })

		var prev time.Duration
		for range 5 {
			e.claim(t, worker)
			_, err := e.store.FailTask(ctx, task.ID, worker, "boom")
			require.NoError(t, err)

			got := e.status(t, task.ID)
			delay := got.ScheduledAt.Sub(e.clock.Now())
			assert.Greater(t, delay, prev)
			prev = delay
			e.clock.Advance(delay)
		}
	})

	t.Run("kill exhausts immediately", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now())

		e.claim(t, worker)
		require.NoError(t, e.store.KillTask(ctx, task.ID, worker, "bad payload"))

		got := e.status(t, task.ID)
		assert.Equal(t, queue.TaskStatusExhausted, got.Status)
		assert.Equal(t, int8(1), got.Attempt)
		e.assertEmpty(t)
	})

	t.Run("expired lease is reclaimed and stale ack rejected", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		first, second := uuid.New(), uuid.New()
		task := e.newTask(t, e.clock.Now())

		e.claim(t, first)
		e.assertEmpty(t)

		e.clock.Advance(lease + time.Millisecond)
		reclaimed := e.claim(t, second)
		assert.Equal(t, task.ID, reclaimed.ID)

		err := e.store.CompleteTask(ctx, task.ID, first)
		assert.ErrorIs(t, err, queue.ErrLeaseLost)
		_, err = e.store.FailTask(ctx, task.ID, first, "late")
		assert.ErrorIs(t, err, queue.ErrLeaseLost)

		require.NoError(t, e.store.CompleteTask(ctx, task.ID, second))
		assert.Equal(t, queue.TaskStatusCompleted, e.status(t, task.ID).Status)
	})

	t.Run("extend lock keeps the lease", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()
		task := e.newTask(t, e.clock.Now())

		e.claim(t, worker)
		e.clock.Advance(lease - time.Second)
		require.NoError(t, e.store.ExtendLock(ctx, task.ID, worker, lease))

		e.clock.Advance(2 * time.Second)
		e.assertEmpty(t)

		assert.ErrorIs(t, e.store.ExtendLock(ctx, task.ID, uuid.New(), lease), queue.ErrLeaseLost)
	})

	t.Run("cancel pending task", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		task := e.newTask(t, e.clock.Now().Add(time.Hour))

		require.NoError(t, e.store.CancelTask(ctx, task.ID))
		assert.Equal(t, queue.TaskStatusCancelled, e.status(t, task.ID).Status)

		e.clock.Advance(2 * time.Hour)
		e.assertEmpty(t)
	})

	t.Run("cancel rejects active and unknown tasks", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		task := e.newTask(t, e.clock.Now())
		e.claim(t, uuid.New())

		assert.ErrorIs(t, e.store.CancelTask(ctx, task.ID), queue.ErrTaskNotCancellable)
		assert.ErrorIs(t, e.store.CancelTask(ctx, uuid.New()), queue.ErrTaskNotFound)
	})

	t.Run("unique key deduplicates live tasks", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		key := "booking:" + uuid.NewString()
		withKey := func(task *queue.Task) { task.UniqueKey = key }

		first := e.newTask(t, e.clock.Now(), withKey)

		dup := &queue.Task{
			ID:          uuid.New(),
			Queue:       e.queue,
			TaskName:    "suite.task",
			Payload:     []byte(`{}`),
			Status:      queue.TaskStatusPending,
			MaxAttempts: queue.DefaultMaxAttempts,
			ScheduledAt: e.clock.Now(),
			CreatedAt:   e.clock.Now(),
			UniqueKey:   key,
		}
		err := e.store.CreateTask(ctx, dup)
		require.ErrorIs(t, err, queue.ErrDuplicateTask)
		assert.Equal(t, first.ID, dup.ID)

		worker := uuid.New()
		e.claim(t, worker)
		require.NoError(t, e.store.CompleteTask(ctx, first.ID, worker))

		again := e.newTask(t, e.clock.Now(), withKey)
		assert.NotEqual(t, first.ID, again.ID)
	})

	t.Run("dead letter limit", func(t *testing.T) {
		t.Parallel()
		e := setup(t, factory)
		worker := uuid.New()

		for range 3 {
			task := e.newTask(t, e.clock.Now())
			e.claim(t, worker)
			require.NoError(t, e.store.KillTask(ctx, task.ID, worker, "dead"))
		}

		letters, err := e.store.ListDeadLetters(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, letters, 2)
	})
}
