package reminder

import "time"

// DefaultLeadTime is how long before the appointment the reminder fires.
const DefaultLeadTime = 24 * time.Hour

// ComputeFireTime returns when the reminder for an appointment should fire and
// how far that is from now. A non-positive delay means the appointment is too
// soon (or already past) and no reminder should be scheduled.
func ComputeFireTime(appointment time.Time, lead time.Duration, now time.Time) (fire time.Time, delay time.Duration) {
	fire = appointment.Add(-lead)
	return fire, fire.Sub(now)
}
