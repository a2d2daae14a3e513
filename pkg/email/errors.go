package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("mailer.errors.failed_to_send_email")
	ErrInvalidConfig     = errors.New("mailer.errors.invalid_config")
	ErrInvalidParams     = errors.New("mailer.errors.invalid_params")

	// ErrRecipientRejected means the provider refused the address itself;
	// sending the same message again will not succeed.
	ErrRecipientRejected = errors.New("mailer.errors.recipient_rejected")
)
