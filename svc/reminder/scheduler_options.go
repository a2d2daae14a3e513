package reminder

import (
	"log/slog"
	"time"

	"github.com/wavespoole/carwash/pkg/queue"
)

// SchedulerOption is a functional option for configuring a Scheduler
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	canceler queue.Canceler
	lead     time.Duration
	location *time.Location
	now      func() time.Time
	dedupe   bool
	logger   *slog.Logger
	metrics  SchedulerMetrics
}

// WithLeadTime sets how long before the appointment the reminder fires
func WithLeadTime(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.lead = d
		}
	}
}

// WithLocation sets the time zone booking dates and times are read in
func WithLocation(loc *time.Location) SchedulerOption {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDeduplication keys each reminder by booking and appointment instant, so
// scheduling the same booking twice returns the queued reminder instead of a second one
func WithDeduplication() SchedulerOption {
	return func(o *schedulerOptions) {
		o.dedupe = true
	}
}

// WithCanceler enables Cancel
func WithCanceler(c queue.Canceler) SchedulerOption {
	return func(o *schedulerOptions) {
		o.canceler = c
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m SchedulerMetrics) SchedulerOption {
	return func(o *schedulerOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}
