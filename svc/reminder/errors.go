package reminder

import "errors"

var (
	// ErrInvalidBooking is returned when a snapshot is malformed; it is joined with validator.ValidationErrors
	ErrInvalidBooking = errors.New("invalid booking snapshot")

	// ErrQueueUnavailable is returned when the reminder could not be submitted to the queue
	ErrQueueUnavailable = errors.New("reminder queue unavailable")

	// ErrSendFailure is returned by the queue handler when delivery failed and should be retried
	ErrSendFailure = errors.New("failed to send reminder")

	// ErrEnqueuerNil is returned when NewScheduler gets a nil enqueuer
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")

	// ErrMailerNil is returned when NewSender gets a nil email sender
	ErrMailerNil = errors.New("email sender cannot be nil")

	// ErrCancelUnsupported is returned by Cancel when no canceler was configured
	ErrCancelUnsupported = errors.New("reminder cancellation is not configured")

	// ErrUnknownTimeZone is returned when the configured time zone cannot be loaded
	ErrUnknownTimeZone = errors.New("unknown time zone")
)
