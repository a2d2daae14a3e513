// Package reminder schedules and delivers the "appointment is tomorrow" email
// for car-wash bookings.
//
// The booking confirmation flow hands a Snapshot to Scheduler.Schedule. The
// scheduler validates it, computes the fire time (appointment minus the lead
// time) and enqueues one task on the reminders queue, or reports a skip when
// the appointment is too close. A queue.Worker running the Handler renders the
// message from exactly that snapshot and hands it to an email.EmailSender;
// failed sends are retried by the queue with exponential backoff.
package reminder
