package queue_test

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

// Mock repository for enqueuer tests
type mockEnqueuerRepo struct {
	mu         sync.Mutex
	createFunc func(ctx context.Context, task *queue.Task) error
	tasks      []*queue.Task
}

func (m *mockEnqueuerRepo) CreateTask(ctx context.Context, task *queue.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

type enqueueTestPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

// Type that cannot be marshaled to JSON
type unmarshalablePayload struct {
	Ch chan int
}

func TestEnqueuer_NewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)
		require.NotNil(t, enqueuer)
	})

	t.Run("nil repository error", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
		assert.Nil(t, enqueuer)
	})
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(clock))
		require.NoError(t, err)

		id, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{Message: "test", Value: 42})
		require.NoError(t, err)

		require.Len(t, repo.tasks, 1)
		task := repo.tasks[0]
		assert.Equal(t, id, task.ID)
		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, queue.DefaultQueueName, task.Queue)
		assert.Equal(t, "queue_test.enqueueTestPayload", task.TaskName)
		assert.JSONEq(t, `{"message":"test","value":42}`, string(task.Payload))
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, int8(0), task.Attempt)
		assert.Equal(t, queue.DefaultMaxAttempts, task.MaxAttempts)
		assert.True(t, task.ScheduledAt.Equal(now))
		assert.True(t, task.CreatedAt.Equal(now))
		assert.Empty(t, task.UniqueKey)
	})

	t.Run("pointer payload uses the same task name", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), &enqueueTestPayload{})
		require.NoError(t, err)
		assert.Equal(t, "queue_test.enqueueTestPayload", repo.tasks[0].TaskName)
	})

	t.Run("custom options", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo,
			queue.WithDefaultQueue("reminders"),
			queue.WithDefaultMaxAttempts(4),
		)
		require.NoError(t, err)

		fireAt := now.Add(23 * time.Hour)
		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{},
			queue.WithMaxAttempts(5),
			queue.WithTaskName("reminder.send"),
			queue.WithScheduledAt(fireAt),
			queue.WithUniqueKey("booking:42"),
		)
		require.NoError(t, err)

		task := repo.tasks[0]
		assert.Equal(t, "reminders", task.Queue)
		assert.Equal(t, int8(5), task.MaxAttempts)
		assert.Equal(t, "reminder.send", task.TaskName)
		assert.Equal(t, "booking:42", task.UniqueKey)
		assert.True(t, task.ScheduledAt.Equal(fireAt))
	})

	t.Run("enqueuer defaults apply", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo,
			queue.WithDefaultQueue("reminders"),
			queue.WithDefaultMaxAttempts(4),
		)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithQueue("other"))
		require.NoError(t, err)
		assert.Equal(t, "other", repo.tasks[0].Queue)
		assert.Equal(t, int8(4), repo.tasks[0].MaxAttempts)
	})

	t.Run("delay", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(clock))
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithDelay(30*time.Second))
		require.NoError(t, err)
		assert.True(t, repo.tasks[0].ScheduledAt.Equal(now.Add(30*time.Second)))
	})

	t.Run("scheduledAt overrides delay", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(clock))
		require.NoError(t, err)

		scheduled := now.Add(2 * time.Hour)
		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{},
			queue.WithDelay(30*time.Second),
			queue.WithScheduledAt(scheduled),
		)
		require.NoError(t, err)
		assert.True(t, repo.tasks[0].ScheduledAt.Equal(scheduled))
	})

	t.Run("nil payload error", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		id, err := enqueuer.Enqueue(context.Background(), nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
		assert.Equal(t, uuid.Nil, id)
		assert.Empty(t, repo.tasks)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		for _, n := range []int8{0, -1, 11} {
			_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithMaxAttempts(n))
			assert.ErrorIs(t, err, queue.ErrInvalidMaxAttempts, "max attempts %d", n)
		}
		assert.Empty(t, repo.tasks)
	})

	t.Run("marshal payload error", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), unmarshalablePayload{Ch: make(chan int)})
		assert.ErrorIs(t, err, queue.ErrPayloadMarshal)
		assert.Empty(t, repo.tasks)
	})

	t.Run("repository error", func(t *testing.T) {
		t.Parallel()

		repoErr := errors.New("database connection lost")
		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{
			createFunc: func(context.Context, *queue.Task) error { return repoErr },
		})
		require.NoError(t, err)

		id, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{})
		assert.ErrorIs(t, err, queue.ErrTaskCreate)
		assert.ErrorIs(t, err, repoErr)
		assert.Equal(t, uuid.Nil, id)
	})

	t.Run("duplicate returns existing id", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		first, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithUniqueKey("booking:7"))
		require.NoError(t, err)

		second, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithUniqueKey("booking:7"))
		assert.ErrorIs(t, err, queue.ErrDuplicateTask)
		assert.Equal(t, first, second)
	})

	t.Run("context passed through", func(t *testing.T) {
		t.Parallel()

		type ctxKey struct{}
		var got any
		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{
			createFunc: func(ctx context.Context, _ *queue.Task) error {
				got = ctx.Value(ctxKey{})
				return nil
			},
		})
		require.NoError(t, err)

		ctx := context.WithValue(context.Background(), ctxKey{}, "v")
		_, err = enqueuer.Enqueue(ctx, enqueueTestPayload{})
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})
}
