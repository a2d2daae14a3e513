package reminder

import (
	"context"
	"fmt"

	"github.com/wavespoole/carwash/pkg/queue"
)

// NewHandler returns the queue handler for TaskName tasks.
// A transient delivery failure becomes an error wrapping ErrSendFailure so the
// queue retries the task with backoff.
func NewHandler(sender *Sender) queue.Handler {
	return queue.NewNamedTaskHandler(TaskName, func(ctx context.Context, snap Snapshot) error {
		d := sender.Send(ctx, snap)
		if d.Status != DeliverySent {
			return fmt.Errorf("%w: %s", ErrSendFailure, d.Reason)
		}
		return nil
	})
}
