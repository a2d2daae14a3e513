package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wavespoole/carwash/pkg/logger"
	"github.com/wavespoole/carwash/pkg/queue"
)

// TaskName is the queue task name reminders are enqueued under.
const TaskName = "reminder.send"

// ReasonTooSoon is the skip reason when the fire time is not in the future.
const ReasonTooSoon = "too soon"

// Decision is what Schedule did with a booking.
type Decision string

const (
	DecisionScheduled Decision = "scheduled"
	DecisionSkipped   Decision = "skipped"
)

// Outcome reports the result of Schedule.
// JobID and FireAt are set for DecisionScheduled; Reason for DecisionSkipped.
// Duplicate is set when deduplication returned an already queued reminder.
type Outcome struct {
	Decision  Decision
	JobID     uuid.UUID
	FireAt    time.Time
	Reason    string
	Duplicate bool
}

// Enqueuer submits tasks. *queue.Enqueuer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// SchedulerMetrics receives scheduling outcomes.
type SchedulerMetrics interface {
	IncScheduled()
	IncSkipped()
	IncCancelled()
}

type nopMetrics struct{}

func (nopMetrics) IncScheduled() {}
func (nopMetrics) IncSkipped()   {}
func (nopMetrics) IncCancelled() {}

// Scheduler turns confirmed bookings into delayed reminder tasks.
type Scheduler struct {
	enqueuer Enqueuer
	canceler queue.Canceler
	lead     time.Duration
	location *time.Location
	now      func() time.Time
	dedupe   bool
	logger   *slog.Logger
	metrics  SchedulerMetrics
}

// NewScheduler creates a Scheduler that submits reminders through enq.
func NewScheduler(enq Enqueuer, opts ...SchedulerOption) (*Scheduler, error) {
	if enq == nil {
		return nil, ErrEnqueuerNil
	}

	options := &schedulerOptions{
		lead:     DefaultLeadTime,
		location: time.UTC,
		now:      time.Now,
		logger:   slog.Default(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		enqueuer: enq,
		canceler: options.canceler,
		lead:     options.lead,
		location: options.location,
		now:      options.now,
		dedupe:   options.dedupe,
		logger:   options.logger.With(logger.Component("reminder.scheduler")),
		metrics:  options.metrics,
	}, nil
}

// Schedule enqueues one reminder for the booking, due LeadTime before the appointment.
//
// A malformed snapshot returns an error wrapping ErrInvalidBooking and nothing is
// enqueued. An appointment closer than the lead time is not an error: the outcome
// is DecisionSkipped with ReasonTooSoon. Queue failures wrap ErrQueueUnavailable.
func (s *Scheduler) Schedule(ctx context.Context, booking Snapshot) (Outcome, error) {
	snap := booking.Normalize()
	if err := snap.Validate(); err != nil {
		return Outcome{}, err
	}

	appointment, err := snap.AppointmentTime(s.location)
	if err != nil {
		return Outcome{}, err
	}

	fireAt, delay := ComputeFireTime(appointment, s.lead, s.now())
	if delay <= 0 {
		s.metrics.IncSkipped()
		s.logger.InfoContext(ctx, "reminder skipped, appointment too soon",
			logger.BookingID(snap.BookingID),
			slog.Time("appointment", appointment),
			logger.FireAt(fireAt))
		return Outcome{Decision: DecisionSkipped, FireAt: fireAt, Reason: ReasonTooSoon}, nil
	}

	opts := []queue.EnqueueOption{
		queue.WithTaskName(TaskName),
		queue.WithScheduledAt(fireAt),
	}
	if s.dedupe {
		opts = append(opts, queue.WithUniqueKey(snap.DedupKey(appointment)))
	}

	jobID, err := s.enqueuer.Enqueue(ctx, snap, opts...)
	if err != nil {
		if errors.Is(err, queue.ErrDuplicateTask) {
			s.logger.InfoContext(ctx, "reminder already scheduled",
				logger.BookingID(snap.BookingID),
				logger.JobID(jobID))
			return Outcome{Decision: DecisionScheduled, JobID: jobID, FireAt: fireAt, Duplicate: true}, nil
		}
		s.logger.ErrorContext(ctx, "failed to enqueue reminder",
			logger.BookingID(snap.BookingID),
			logger.Error(err))
		return Outcome{}, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}

	s.metrics.IncScheduled()
	s.logger.InfoContext(ctx, "reminder scheduled",
		logger.BookingID(snap.BookingID),
		logger.JobID(jobID),
		logger.FireAt(fireAt),
		slog.Duration("delay", delay))

	return Outcome{Decision: DecisionScheduled, JobID: jobID, FireAt: fireAt}, nil
}

// Cancel withdraws a reminder that has not started sending.
// Errors from the queue (queue.ErrTaskNotFound, queue.ErrTaskNotCancellable) are returned as is.
func (s *Scheduler) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if s.canceler == nil {
		return ErrCancelUnsupported
	}
	if err := s.canceler.CancelTask(ctx, jobID); err != nil {
		return err
	}
	s.metrics.IncCancelled()
	s.logger.InfoContext(ctx, "reminder cancelled", logger.JobID(jobID))
	return nil
}
