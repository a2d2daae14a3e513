// Package queue provides a storage-agnostic delayed task queue with at-least-once
// delivery, leased claims, exponential retry backoff and dead-lettering.
//
// The package is organised around two components:
//
//   - Enqueuer: adds tasks that become visible at a chosen instant
//   - Worker: claims visible tasks and dispatches them to a registered Handler
//
// Both talk to persistence only through the small repository interfaces in
// storage.go. MemoryStorage implements them in-process; the redisstore, pgstore
// and sqlitestore subpackages implement them on durable backends, and the
// queuetest subpackage holds the behaviour every backend must share.
//
// # Lifecycle
//
//	pending --claim--> active --success--> completed
//	                          --failure--> pending (after backoff) | failed-exhausted
//	pending --cancel-> cancelled
//
// A claim leases the task to one worker for a lock timeout. Acks from a worker
// whose lease expired are rejected with ErrLeaseLost, and the task is handed to
// the next claimer. Handlers must therefore be idempotent.
//
// # Usage
//
//	type ReminderPayload struct {
//		BookingID string `json:"booking_id"`
//	}
//
//	storage := queue.NewMemoryStorage()
//	enq, _ := queue.NewEnqueuer(storage)
//	id, err := enq.Enqueue(ctx, ReminderPayload{BookingID: "b-1"},
//		queue.WithScheduledAt(fireAt),
//	)
//
//	w, _ := queue.NewWorker(storage)
//	_ = w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p ReminderPayload) error {
//		return send(ctx, p)
//	}))
//	_ = w.Start(ctx)
//
// # Error Handling
//
// Sentinel errors (ErrDuplicateTask, ErrLeaseLost, ErrNoHandlers, ...) can be
// checked with errors.Is. A handler returning an error wrapped with Permanent
// exhausts the task without further retries.
package queue
