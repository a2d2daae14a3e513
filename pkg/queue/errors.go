package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrTaskCreate is returned when task creation in storage fails
	ErrTaskCreate = errors.New("failed to create task in storage")

	// ErrDuplicateTask is returned when a live task with the same unique key exists
	ErrDuplicateTask = errors.New("task with the same unique key already exists")

	// ErrTaskNotFound is returned when no task matches the given ID
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoTaskToClaim is returned by storages when nothing is visible yet
	ErrNoTaskToClaim = errors.New("no task available to claim")

	// ErrLeaseLost is returned when a worker acks or fails a task it no longer owns
	ErrLeaseLost = errors.New("task lease is not held by this worker")

	// ErrTaskNotCancellable is returned when cancelling a task that is not pending
	ErrTaskNotCancellable = errors.New("only pending tasks can be cancelled")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrWorkerStarted is returned when Start is called twice
	ErrWorkerStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when Stop is called before Start
	ErrWorkerNotStarted = errors.New("worker not started")

	// ErrShutdownTimeout is returned by Stop when tasks outlive the shutdown timeout
	ErrShutdownTimeout = errors.New("worker shutdown timed out")

	// ErrInvalidMaxAttempts is returned when max attempts is outside 1..10
	ErrInvalidMaxAttempts = errors.New("max attempts must be between 1 and 10")
)

// permanentError marks a handler failure that retries cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker exhausts the task instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
