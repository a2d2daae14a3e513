package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/email"
	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/queue/queuetest"
	"github.com/wavespoole/carwash/svc/reminder"
)

// flakyMailer fails the first failures sends
type flakyMailer struct {
	mu       sync.Mutex
	failures int
	attempts int
	sent     []email.SendEmailParams
}

func (m *flakyMailer) SendEmail(_ context.Context, p email.SendEmailParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failures > 0 {
		m.failures--
		return errors.Join(email.ErrFailedToSendEmail, errors.New("provider returned 503"))
	}
	m.sent = append(m.sent, p)
	return nil
}

type pipeline struct {
	clock     *queuetest.Clock
	storage   *queue.MemoryStorage
	scheduler *reminder.Scheduler
	worker    *queue.Worker
	mailer    *flakyMailer
}

func newPipeline(t *testing.T, failures int) *pipeline {
	t.Helper()

	clock := queuetest.NewClock(queuetest.Epoch)
	storage := queue.NewMemoryStorage(
		queue.WithMemoryClock(clock.Now),
		queue.WithMemoryBackoff(queue.ExponentialBackoff{Base: time.Minute}),
	)
	enq, err := queue.NewEnqueuer(storage, queue.WithDefaultQueue("reminders"), queue.WithEnqueuerClock(clock.Now))
	require.NoError(t, err)

	scheduler, err := reminder.NewScheduler(enq,
		reminder.WithLocation(london(t)),
		reminder.WithClock(clock.Now),
		reminder.WithLogger(discardLogger()))
	require.NoError(t, err)

	mailer := &flakyMailer{failures: failures}
	sender, err := reminder.NewSender(mailer, reminder.DefaultBusinessProfile(), discardLogger())
	require.NoError(t, err)

	worker, err := queue.NewWorker(storage,
		queue.WithQueues("reminders"),
		queue.WithWorkerLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(reminder.NewHandler(sender)))

	return &pipeline{clock: clock, storage: storage, scheduler: scheduler, worker: worker, mailer: mailer}
}

func (p *pipeline) process(t *testing.T) bool {
	t.Helper()
	ok, err := p.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	return ok
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	s, err := reminder.NewSender(nil, reminder.DefaultBusinessProfile(), nil)
	assert.ErrorIs(t, err, reminder.ErrMailerNil)
	assert.Nil(t, s)
}

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("sent", func(t *testing.T) {
		t.Parallel()
		mailer := &flakyMailer{}
		s, err := reminder.NewSender(mailer, reminder.DefaultBusinessProfile(), discardLogger())
		require.NoError(t, err)

		d := s.Send(context.Background(), validSnapshot().Normalize())
		assert.Equal(t, reminder.Delivery{Status: reminder.DeliverySent}, d)
		require.Len(t, mailer.sent, 1)
		p := mailer.sent[0]
		assert.Equal(t, "jane@example.com", p.SendTo)
		assert.Equal(t, "Jane Doe", p.SendToName)
		assert.Equal(t, reminder.Subject, p.Subject)
		assert.Equal(t, reminder.EmailTag, p.Tag)
		assert.NotEmpty(t, p.BodyHTML)
		assert.NotEmpty(t, p.BodyText)
	})

	t.Run("any provider error is transient", func(t *testing.T) {
		t.Parallel()
		s, err := reminder.NewSender(&flakyMailer{failures: 1}, reminder.DefaultBusinessProfile(), discardLogger())
		require.NoError(t, err)

		d := s.Send(context.Background(), validSnapshot().Normalize())
		assert.Equal(t, reminder.DeliveryTransientFailure, d.Status)
		assert.Contains(t, d.Reason, "provider returned 503")
	})
}

func TestHandler(t *testing.T) {
	t.Parallel()

	mailer := &flakyMailer{failures: 1}
	sender, err := reminder.NewSender(mailer, reminder.DefaultBusinessProfile(), discardLogger())
	require.NoError(t, err)
	h := reminder.NewHandler(sender)
	assert.Equal(t, reminder.TaskName, h.Name())

	payload := []byte(`{"customerName":"Jane Doe","customerEmail":"jane@example.com","packageName":"Mini Valet","extras":[],"date":"2025-06-03","time":"10:00"}`)

	err = h.Handle(context.Background(), payload)
	assert.ErrorIs(t, err, reminder.ErrSendFailure)
	assert.False(t, queue.IsPermanent(err))

	require.NoError(t, h.Handle(context.Background(), payload))

	err = h.Handle(context.Background(), []byte(`{"customerName":`))
	assert.True(t, queue.IsPermanent(err))
}

func TestPipeline_DeliveredWhenDue(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, 0)
	out, err := p.scheduler.Schedule(context.Background(), validSnapshot())
	require.NoError(t, err)

	assert.False(t, p.process(t), "nothing is visible before the fire time")

	p.clock.Set(out.FireAt)
	assert.True(t, p.process(t))
	require.Len(t, p.mailer.sent, 1)
	assert.Contains(t, p.mailer.sent[0].BodyText, "Ford Focus")

	task, err := p.storage.GetTask(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusCompleted, task.Status)
	assert.Equal(t, int8(0), task.Attempt)
	assert.False(t, p.process(t))
}

func TestPipeline_TwoFailuresThenSuccess(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, 2)
	ctx := context.Background()
	out, err := p.scheduler.Schedule(ctx, validSnapshot())
	require.NoError(t, err)
	p.clock.Set(out.FireAt)

	require.True(t, p.process(t))
	task, err := p.storage.GetTask(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusPending, task.Status)
	assert.Equal(t, int8(1), task.Attempt)
	assert.True(t, out.FireAt.Add(time.Minute).Equal(task.ScheduledAt), "scheduled at %s", task.ScheduledAt)

	assert.False(t, p.process(t), "retry waits for backoff")
	p.clock.Advance(time.Minute)
	require.True(t, p.process(t))

	task, err = p.storage.GetTask(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, int8(2), task.Attempt)
	assert.True(t, out.FireAt.Add(3*time.Minute).Equal(task.ScheduledAt), "scheduled at %s", task.ScheduledAt)

	p.clock.Advance(2 * time.Minute)
	require.True(t, p.process(t))

	task, err = p.storage.GetTask(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusCompleted, task.Status)
	assert.Equal(t, int8(2), task.Attempt)
	assert.Equal(t, 3, p.mailer.attempts)
	assert.Len(t, p.mailer.sent, 1)
}

func TestPipeline_ExhaustedAfterThreeFailures(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, 10)
	ctx := context.Background()
	out, err := p.scheduler.Schedule(ctx, validSnapshot())
	require.NoError(t, err)
	p.clock.Set(out.FireAt)

	for range 3 {
		require.True(t, p.process(t))
		p.clock.Advance(time.Hour)
	}

	task, err := p.storage.GetTask(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.TaskStatusExhausted, task.Status)
	assert.Equal(t, int8(3), task.Attempt)
	require.NotNil(t, task.Error)
	assert.Contains(t, *task.Error, "provider returned 503")

	p.clock.Advance(24 * time.Hour)
	assert.False(t, p.process(t), "exhausted reminders are never claimed again")
	assert.Equal(t, 3, p.mailer.attempts)

	dead, err := p.storage.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, out.JobID, dead[0].TaskID)
	assert.Equal(t, reminder.TaskName, dead[0].TaskName)
}
