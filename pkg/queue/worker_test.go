package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/queue/queuetest"
)

// MockWorkerRepository is a mock implementation of WorkerRepository
type MockWorkerRepository struct {
	mock.Mock
}

func (m *MockWorkerRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	args := m.Called(ctx, workerID, queues, lockDuration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockWorkerRepository) CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error {
	return m.Called(ctx, taskID, workerID).Error(0)
}

func (m *MockWorkerRepository) FailTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (queue.TaskStatus, error) {
	args := m.Called(ctx, taskID, workerID, errorMsg)
	return args.Get(0).(queue.TaskStatus), args.Error(1)
}

func (m *MockWorkerRepository) KillTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) error {
	return m.Called(ctx, taskID, workerID, errorMsg).Error(0)
}

func (m *MockWorkerRepository) ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	return m.Called(ctx, taskID, workerID, duration).Error(0)
}

type countingMetrics struct {
	completed, retried, exhausted atomic.Int64
}

func (m *countingMetrics) IncCompleted() { m.completed.Add(1) }
func (m *countingMetrics) IncRetried()   { m.retried.Add(1) }
func (m *countingMetrics) IncExhausted() { m.exhausted.Add(1) }

// extendCounter counts lease renewals on top of MemoryStorage
type extendCounter struct {
	*queue.MemoryStorage
	extends atomic.Int64
}

func (e *extendCounter) ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, d time.Duration) error {
	e.extends.Add(1)
	return e.MemoryStorage.ExtendLock(ctx, taskID, workerID, d)
}

type testPayload struct {
	Message string `json:"message"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	clock    *queuetest.Clock
	storage  *queue.MemoryStorage
	enqueuer *queue.Enqueuer
	worker   *queue.Worker
	metrics  *countingMetrics
}

func newHarness(t *testing.T, handler queue.Handler) *harness {
	t.Helper()

	clock := queuetest.NewClock(queuetest.Epoch)
	storage := queue.NewMemoryStorage(
		queue.WithMemoryClock(clock.Now),
		queue.WithMemoryBackoff(queue.ExponentialBackoff{Base: time.Minute}),
	)
	enqueuer, err := queue.NewEnqueuer(storage, queue.WithEnqueuerClock(clock.Now))
	require.NoError(t, err)

	metrics := &countingMetrics{}
	worker, err := queue.NewWorker(storage,
		queue.WithWorkerLogger(discardLogger()),
		queue.WithWorkerMetrics(metrics),
	)
	require.NoError(t, err)
	if handler != nil {
		require.NoError(t, worker.RegisterHandler(handler))
	}

	return &harness{clock: clock, storage: storage, enqueuer: enqueuer, worker: worker, metrics: metrics}
}

func (h *harness) task(t *testing.T, id uuid.UUID) *queue.Task {
	t.Helper()
	task, err := h.storage.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func TestWorker_NewWorker(t *testing.T) {
	t.Parallel()

	t.Run("nil repository error", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
		assert.Nil(t, worker)
	})

	t.Run("with options", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(new(MockWorkerRepository),
			queue.WithQueues("queue1", "queue2"),
			queue.WithPullInterval(time.Second),
			queue.WithLockTimeout(10*time.Minute),
			queue.WithTaskTimeout(time.Minute),
			queue.WithMaxConcurrentTasks(5),
		)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, worker.ID())

		id, _, pid := worker.WorkerInfo()
		assert.Equal(t, worker.ID().String(), id)
		assert.Positive(t, pid)
	})
}

func TestWorker_ProcessNext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no handlers", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		_, err := h.worker.ProcessNext(ctx)
		assert.ErrorIs(t, err, queue.ErrNoHandlers)
	})

	t.Run("nothing to claim", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error { return nil }))
		processed, err := h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("delayed task waits for its time", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error {
			calls.Add(1)
			return nil
		}))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{Message: "later"}, queue.WithDelay(time.Hour))
		require.NoError(t, err)

		processed, err := h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.False(t, processed)

		h.clock.Advance(time.Hour)
		processed, err = h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
		assert.Equal(t, int64(1), calls.Load())
		assert.Equal(t, queue.TaskStatusCompleted, h.task(t, id).Status)
		assert.Equal(t, int64(1), h.metrics.completed.Load())
	})

	t.Run("two failures then success", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error {
			if calls.Add(1) <= 2 {
				return errors.New("provider unavailable")
			}
			return nil
		}))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{})
		require.NoError(t, err)

		for i := range 3 {
			processed, err := h.worker.ProcessNext(ctx)
			require.NoError(t, err)
			require.True(t, processed, "run %d", i)
			h.clock.Advance(time.Minute << i)
		}

		task := h.task(t, id)
		assert.Equal(t, queue.TaskStatusCompleted, task.Status)
		assert.Equal(t, int8(2), task.Attempt)
		assert.Equal(t, int64(3), calls.Load())
		assert.Equal(t, int64(2), h.metrics.retried.Load())
		assert.Equal(t, int64(1), h.metrics.completed.Load())
	})

	t.Run("exhausts after three failures", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error {
			return errors.New("provider unavailable")
		}))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{})
		require.NoError(t, err)

		for i := range 3 {
			processed, err := h.worker.ProcessNext(ctx)
			require.NoError(t, err)
			require.True(t, processed)
			h.clock.Advance(time.Minute << i)
		}

		task := h.task(t, id)
		assert.Equal(t, queue.TaskStatusExhausted, task.Status)
		assert.Equal(t, int8(3), task.Attempt)
		assert.Equal(t, int64(1), h.metrics.exhausted.Load())
		assert.Equal(t, int64(2), h.metrics.retried.Load())

		h.clock.Advance(24 * time.Hour)
		processed, err := h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.False(t, processed)

		letters, err := h.storage.ListDeadLetters(ctx, 10)
		require.NoError(t, err)
		require.Len(t, letters, 1)
		assert.Equal(t, id, letters[0].TaskID)
	})

	t.Run("permanent error exhausts at once", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error {
			return queue.Permanent(errors.New("address rejected"))
		}))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{})
		require.NoError(t, err)

		_, err = h.worker.ProcessNext(ctx)
		require.NoError(t, err)

		task := h.task(t, id)
		assert.Equal(t, queue.TaskStatusExhausted, task.Status)
		assert.Equal(t, int8(1), task.Attempt)
		assert.Equal(t, int64(1), h.metrics.exhausted.Load())
	})

	t.Run("panic counts as failure", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error {
			panic("nil map")
		}))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{})
		require.NoError(t, err)

		processed, err := h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, processed)

		task := h.task(t, id)
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, int8(1), task.Attempt)
		require.NotNil(t, task.Error)
		assert.Contains(t, *task.Error, "panic in handler")
	})

	t.Run("missing handler exhausts task", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error { return nil }))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{}, queue.WithTaskName("unknown.task"))
		require.NoError(t, err)

		processed, err := h.worker.ProcessNext(ctx)
		assert.True(t, processed)
		assert.ErrorIs(t, err, queue.ErrHandlerNotFound)
		assert.Equal(t, queue.TaskStatusExhausted, h.task(t, id).Status)
	})

	t.Run("result recorded after caller context is cancelled", func(t *testing.T) {
		t.Parallel()

		runCtx, cancel := context.WithCancel(ctx)
		h := newHarness(t, queue.NewTaskHandler(func(context.Context, testPayload) error {
			cancel()
			return nil
		}))

		id, err := h.enqueuer.Enqueue(ctx, testPayload{})
		require.NoError(t, err)

		processed, err := h.worker.ProcessNext(runCtx)
		require.NoError(t, err)
		assert.True(t, processed)
		assert.Equal(t, queue.TaskStatusCompleted, h.task(t, id).Status)
	})

	t.Run("lost lease surfaces as error", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(discardLogger()))
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error { return nil })))

		task := &queue.Task{
			ID:          uuid.New(),
			Queue:       queue.DefaultQueueName,
			TaskName:    "queue_test.testPayload",
			Payload:     []byte(`{}`),
			Status:      queue.TaskStatusActive,
			MaxAttempts: 3,
		}
		repo.On("ClaimTask", mock.Anything, worker.ID(), []string{queue.DefaultQueueName}, 5*time.Minute).Return(task, nil).Once()
		repo.On("CompleteTask", mock.Anything, task.ID, worker.ID()).Return(queue.ErrLeaseLost).Once()

		processed, err := worker.ProcessNext(ctx)
		assert.True(t, processed)
		assert.ErrorIs(t, err, queue.ErrLeaseLost)
		repo.AssertExpectations(t)
	})

	t.Run("claim error", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(discardLogger()))
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error { return nil })))

		dbErr := errors.New("connection refused")
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, dbErr).Once()

		processed, err := worker.ProcessNext(ctx)
		assert.False(t, processed)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestWorker_Heartbeat(t *testing.T) {
	t.Parallel()

	repo := &extendCounter{MemoryStorage: queue.NewMemoryStorage()}
	enqueuer, err := queue.NewEnqueuer(repo)
	require.NoError(t, err)

	worker, err := queue.NewWorker(repo,
		queue.WithWorkerLogger(discardLogger()),
		queue.WithLockTimeout(30*time.Millisecond),
		queue.WithTaskTimeout(time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})))

	id, err := enqueuer.Enqueue(context.Background(), testPayload{})
	require.NoError(t, err)

	processed, err := worker.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.GreaterOrEqual(t, repo.extends.Load(), int64(2))

	task, err := repo.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusCompleted, task.Status)
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(queue.NewMemoryStorage(), queue.WithWorkerLogger(discardLogger()))
		require.NoError(t, err)
		assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrNoHandlers)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(queue.NewMemoryStorage(), queue.WithWorkerLogger(discardLogger()))
		require.NoError(t, err)
		assert.ErrorIs(t, worker.Stop(), queue.ErrWorkerNotStarted)
	})

	t.Run("processes in background", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		done := make(chan string, 4)
		worker, err := queue.NewWorker(storage,
			queue.WithWorkerLogger(discardLogger()),
			queue.WithPullInterval(5*time.Millisecond),
			queue.WithMaxConcurrentTasks(2),
		)
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(_ context.Context, p testPayload) error {
			done <- p.Message
			return nil
		})))

		require.NoError(t, worker.Start(context.Background()))
		assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrWorkerStarted)

		for _, msg := range []string{"a", "b", "c"} {
			_, err := enqueuer.Enqueue(context.Background(), testPayload{Message: msg})
			require.NoError(t, err)
		}

		got := map[string]bool{}
		for range 3 {
			select {
			case msg := <-done:
				got[msg] = true
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for tasks")
			}
		}
		assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, got)
		require.NoError(t, worker.Stop())
	})

	t.Run("stop gives up after shutdown timeout", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		worker, err := queue.NewWorker(storage,
			queue.WithWorkerLogger(discardLogger()),
			queue.WithPullInterval(5*time.Millisecond),
			queue.WithShutdownTimeout(20*time.Millisecond),
		)
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error {
			close(started)
			<-release
			return nil
		})))

		_, err = enqueuer.Enqueue(context.Background(), testPayload{Message: "slow"})
		require.NoError(t, err)
		require.NoError(t, worker.Start(context.Background()))

		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("handler never started")
		}
		assert.ErrorIs(t, worker.Stop(), queue.ErrShutdownTimeout)
	})

	t.Run("run stops with context", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(queue.NewMemoryStorage(),
			queue.WithWorkerLogger(discardLogger()),
			queue.WithPullInterval(5*time.Millisecond),
		)
		require.NoError(t, err)
		require.NoError(t, worker.RegisterHandler(queue.NewTaskHandler(func(context.Context, testPayload) error { return nil })))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- worker.Run(ctx)() }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
	})
}
