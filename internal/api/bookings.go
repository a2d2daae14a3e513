package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wavespoole/carwash/handler"
	"github.com/wavespoole/carwash/pkg/validator"
	"github.com/wavespoole/carwash/svc/reminder"
)

// StatusUnscheduled reports a confirmed booking whose reminder could not be queued.
const StatusUnscheduled = "unscheduled"

type reminderStatus struct {
	Status    string     `json:"status"`
	JobID     string     `json:"jobId,omitempty"`
	FireAt    *time.Time `json:"fireAt,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Duplicate bool       `json:"duplicate,omitempty"`
}

type bookingResponse struct {
	BookingID string         `json:"bookingId,omitempty"`
	Reminder  reminderStatus `json:"reminder"`
}

type bookings struct {
	scheduler BookingScheduler
}

// confirm schedules the reminder for a confirmed booking. The booking itself is
// already confirmed, so a queue outage answers 202 with status "unscheduled".
func (b *bookings) confirm(ctx handler.Context, req reminder.Snapshot) handler.Response {
	out, err := b.scheduler.Schedule(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, reminder.ErrInvalidBooking):
		if verrs := validator.ExtractValidationErrors(err); !verrs.IsEmpty() {
			return handler.JSONError(handler.ValidationErrorFrom(verrs.Map()))
		}
		return handler.JSONError(handler.ErrUnprocessableEntity.WithMessage(err.Error()))
	case errors.Is(err, reminder.ErrQueueUnavailable):
		return handler.JSON(bookingResponse{
			BookingID: req.BookingID,
			Reminder:  reminderStatus{Status: StatusUnscheduled, Reason: "reminder queue unavailable"},
		}, handler.WithJSONStatus(http.StatusAccepted))
	default:
		return handler.JSONError(err)
	}

	status := reminderStatus{Status: string(out.Decision), Reason: out.Reason, Duplicate: out.Duplicate}
	if out.Decision == reminder.DecisionScheduled {
		fireAt := out.FireAt.UTC()
		status.JobID = out.JobID.String()
		status.FireAt = &fireAt
	}
	return handler.JSON(bookingResponse{BookingID: req.BookingID, Reminder: status})
}

// badParams answers 400 for malformed path or query parameters.
func badParams(err error) handler.Response {
	msg := err.Error()
	if verrs := validator.ExtractValidationErrors(err); !verrs.IsEmpty() {
		parts := make([]string, 0, len(verrs))
		for _, v := range verrs {
			parts = append(parts, v.Field+" "+v.Message)
		}
		msg = strings.Join(parts, "; ")
	}
	return handler.JSONError(handler.ErrBadRequest.WithMessage(msg))
}
