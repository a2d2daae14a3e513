package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wavespoole/carwash/handler"
	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/validator"
	"github.com/wavespoole/carwash/svc/reminder"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

type reminderRequest struct {
	ID string `path:"id"`
}

type deadLettersRequest struct {
	Limit int `query:"limit"`
}

type reminderView struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"bookingId,omitempty"`
	Status      string     `json:"status"`
	Attempt     int8       `json:"attempt"`
	MaxAttempts int8       `json:"maxAttempts"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type deadLetterView struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	BookingID string    `json:"bookingId,omitempty"`
	Error     string    `json:"error"`
	Attempt   int8      `json:"attempt"`
	FailedAt  time.Time `json:"failedAt"`
}

type reminders struct {
	scheduler BookingScheduler
	inspector queue.Inspector
}

// lookup resolves the path id to a reminder task. Tasks of other kinds are
// reported as not found.
func (h *reminders) lookup(ctx handler.Context, req reminderRequest) (*queue.Task, handler.Response) {
	if err := validator.Apply(validator.ValidUUID("id", req.ID)); err != nil {
		return nil, badParams(err)
	}

	task, err := h.inspector.GetTask(ctx, uuid.MustParse(req.ID))
	if errors.Is(err, queue.ErrTaskNotFound) || (err == nil && task.TaskName != reminder.TaskName) {
		return nil, handler.JSONError(handler.ErrNotFound)
	}
	if err != nil {
		return nil, handler.JSONError(err)
	}
	return task, nil
}

func (h *reminders) get(ctx handler.Context, req reminderRequest) handler.Response {
	task, resp := h.lookup(ctx, req)
	if resp != nil {
		return resp
	}

	view := reminderView{
		ID:          task.ID.String(),
		BookingID:   bookingID(task.Payload),
		Status:      string(task.Status),
		Attempt:     task.Attempt,
		MaxAttempts: task.MaxAttempts,
		ScheduledAt: task.ScheduledAt.UTC(),
		ProcessedAt: task.ProcessedAt,
		CreatedAt:   task.CreatedAt.UTC(),
	}
	if task.Error != nil {
		view.Error = *task.Error
	}
	return handler.JSON(view)
}

func (h *reminders) cancel(ctx handler.Context, req reminderRequest) handler.Response {
	task, resp := h.lookup(ctx, req)
	if resp != nil {
		return resp
	}

	switch err := h.scheduler.Cancel(ctx, task.ID); {
	case err == nil:
		return handler.Empty()
	case errors.Is(err, queue.ErrTaskNotFound):
		return handler.JSONError(handler.ErrNotFound)
	case errors.Is(err, queue.ErrTaskNotCancellable):
		return handler.JSONError(handler.ErrConflict.WithMessage(err.Error()))
	case errors.Is(err, reminder.ErrCancelUnsupported):
		return handler.JSONError(handler.ErrNotImplemented)
	default:
		return handler.JSONError(err)
	}
}

func (h *reminders) deadLetters(ctx handler.Context, req deadLettersRequest) handler.Response {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultDeadLetterLimit
	}
	limit = min(limit, maxDeadLetterLimit)

	letters, err := h.inspector.ListDeadLetters(ctx, limit)
	if err != nil {
		return handler.JSONError(err)
	}

	views := make([]deadLetterView, 0, len(letters))
	for _, dl := range letters {
		views = append(views, deadLetterView{
			ID:        dl.ID.String(),
			TaskID:    dl.TaskID.String(),
			BookingID: bookingID(dl.Payload),
			Error:     dl.Error,
			Attempt:   dl.Attempt,
			FailedAt:  dl.FailedAt.UTC(),
		})
	}
	return handler.JSON(views, handler.WithJSONMeta(map[string]any{"limit": limit}))
}

// bookingID pulls the booking reference out of a reminder payload, "" if absent.
func bookingID(payload []byte) string {
	var snap struct {
		BookingID string `json:"bookingId"`
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return ""
	}
	return snap.BookingID
}
