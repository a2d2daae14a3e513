package reminder

import (
	"context"
	"log/slog"

	"github.com/wavespoole/carwash/pkg/email"
	"github.com/wavespoole/carwash/pkg/logger"
)

// EmailTag labels reminder emails in the provider's analytics.
const EmailTag = "booking-reminder"

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent             DeliveryStatus = "sent"
	DeliveryTransientFailure DeliveryStatus = "transient_failure"
)

// Delivery reports a send attempt. Reason is set for failures.
type Delivery struct {
	Status DeliveryStatus
	Reason string
}

// Sender renders a snapshot and hands it to the email provider.
type Sender struct {
	mailer   email.EmailSender
	business BusinessProfile
	logger   *slog.Logger
}

// NewSender creates a Sender. A nil logger means slog.Default().
func NewSender(mailer email.EmailSender, business BusinessProfile, log *slog.Logger) (*Sender, error) {
	if mailer == nil {
		return nil, ErrMailerNil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		mailer:   mailer,
		business: business,
		logger:   log.With(logger.Component("reminder.sender")),
	}, nil
}

// Send makes one delivery attempt. Every failure is reported as
// DeliveryTransientFailure; retry policy belongs to the queue.
func (s *Sender) Send(ctx context.Context, snap Snapshot) Delivery {
	msg, err := RenderMessage(ctx, snap, s.business)
	if err != nil {
		return Delivery{Status: DeliveryTransientFailure, Reason: err.Error()}
	}

	err = s.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:     snap.CustomerEmail,
		SendToName: snap.CustomerName,
		Subject:    msg.Subject,
		BodyHTML:   msg.HTML,
		BodyText:   msg.Text,
		Tag:        EmailTag,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "reminder email not sent",
			logger.BookingID(snap.BookingID),
			logger.Recipient(snap.CustomerEmail),
			logger.Error(err))
		return Delivery{Status: DeliveryTransientFailure, Reason: err.Error()}
	}

	s.logger.InfoContext(ctx, "reminder email sent",
		logger.BookingID(snap.BookingID),
		logger.Recipient(snap.CustomerEmail))
	return Delivery{Status: DeliverySent}
}
