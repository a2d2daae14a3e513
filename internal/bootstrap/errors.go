package bootstrap

import "errors"

var (
	// ErrUnknownDriver is returned for a QUEUE_DRIVER value with no storage behind it.
	ErrUnknownDriver = errors.New("unknown queue driver")

	// ErrUnknownEmailProvider is returned for an EMAIL_PROVIDER value with no sender behind it.
	ErrUnknownEmailProvider = errors.New("unknown email provider")

	// ErrStorageUnavailable wraps failures to connect to or migrate the queue backend.
	ErrStorageUnavailable = errors.New("queue storage unavailable")
)
