package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/queue/queuetest"
	"github.com/wavespoole/carwash/pkg/queue/sqlitestore"
)

func TestStore(t *testing.T) {
	t.Parallel()

	queuetest.RunStorageSuite(t, func(t *testing.T, now queue.Clock, backoff queue.BackoffPolicy) queue.Storage {
		s, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "queue.db"),
			sqlitestore.WithClock(now),
			sqlitestore.WithBackoff(backoff),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	clock := queuetest.NewClock(queuetest.Epoch)

	s, err := sqlitestore.Open(ctx, path, sqlitestore.WithClock(clock.Now))
	require.NoError(t, err)

	task := &queue.Task{
		ID:          uuid.New(),
		Queue:       "reminders",
		TaskName:    "reminder.send",
		Payload:     []byte(`{"booking_id":"b-9"}`),
		Status:      queue.TaskStatusPending,
		MaxAttempts: 3,
		ScheduledAt: clock.Now().Add(time.Hour),
		CreatedAt:   clock.Now(),
	}
	require.NoError(t, s.CreateTask(ctx, task))
	require.NoError(t, s.Close())

	reopened, err := sqlitestore.Open(ctx, path, sqlitestore.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	require.NoError(t, reopened.Ping(ctx))

	got, err := reopened.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusPending, got.Status)
	assert.True(t, task.ScheduledAt.Equal(got.ScheduledAt))
}
