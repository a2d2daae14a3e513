package reminder

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wavespoole/carwash/pkg/validator"
)

// UnknownVehicle fills in a missing make or model.
const UnknownVehicle = "Unknown"

// Snapshot is the booking state a reminder is rendered from. It is captured
// once when the reminder is scheduled and travels as the task payload; the
// worker never looks the booking up again.
type Snapshot struct {
	BookingID     string   `json:"bookingId,omitempty"`
	CustomerName  string   `json:"customerName"`
	CustomerEmail string   `json:"customerEmail"`
	VehicleMake   string   `json:"vehicleMake,omitempty"`
	VehicleModel  string   `json:"vehicleModel,omitempty"`
	PackageName   string   `json:"packageName"`
	Extras        []string `json:"extras"`
	Date          string   `json:"date"` // YYYY-MM-DD
	Time          string   `json:"time"` // HH:MM or HH:MM:SS
	EstimatedTime string   `json:"estimatedTime,omitempty"`
}

// Normalize returns a trimmed copy with vehicle defaults applied.
// Extras are copied so later changes by the caller cannot reach a queued payload.
func (s Snapshot) Normalize() Snapshot {
	out := Snapshot{
		BookingID:     strings.TrimSpace(s.BookingID),
		CustomerName:  strings.TrimSpace(s.CustomerName),
		CustomerEmail: strings.TrimSpace(s.CustomerEmail),
		VehicleMake:   strings.TrimSpace(s.VehicleMake),
		VehicleModel:  strings.TrimSpace(s.VehicleModel),
		PackageName:   strings.TrimSpace(s.PackageName),
		Extras:        slices.Clone(s.Extras),
		Date:          strings.TrimSpace(s.Date),
		Time:          strings.TrimSpace(s.Time),
		EstimatedTime: strings.TrimSpace(s.EstimatedTime),
	}
	if out.VehicleMake == "" {
		out.VehicleMake = UnknownVehicle
	}
	if out.VehicleModel == "" {
		out.VehicleModel = UnknownVehicle
	}
	if out.Extras == nil {
		out.Extras = []string{}
	}
	return out
}

// Validate checks the fields a reminder cannot be sent without.
// The returned error wraps ErrInvalidBooking and validator.ValidationErrors.
func (s Snapshot) Validate() error {
	err := validator.Apply(
		validator.RequiredString("customerName", s.CustomerName),
		validator.MaxLen("customerName", s.CustomerName, 200),
		validator.RequiredString("customerEmail", s.CustomerEmail),
		validator.ValidEmail("customerEmail", s.CustomerEmail),
		validator.MaxLen("packageName", s.PackageName, 200),
		validator.MaxLenSlice("extras", s.Extras, 50),
		validator.NoEmptyStrings("extras", s.Extras),
		validator.ValidDate("date", s.Date, time.DateOnly),
		validator.ValidClockTime("time", s.Time),
	)
	if err != nil {
		return errors.Join(ErrInvalidBooking, err)
	}
	return nil
}

// AppointmentTime combines Date and Time into one instant in loc.
func (s Snapshot) AppointmentTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(time.DateOnly, s.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %w", ErrInvalidBooking, s.Date, err)
	}
	clock, err := validator.ParseClockTime(s.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q: %w", ErrInvalidBooking, s.Time, err)
	}
	h := int(clock / time.Hour)
	m := int(clock % time.Hour / time.Minute)
	sec := int(clock % time.Minute / time.Second)
	// time.Date normalises wall clocks that fall in a DST gap
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, sec, 0, loc), nil
}

// Vehicle is make and model as shown in the message.
func (s Snapshot) Vehicle() string {
	return strings.TrimSpace(s.VehicleMake + " " + s.VehicleModel)
}

// ExtrasList joins extras for display, or "None".
func (s Snapshot) ExtrasList() string {
	if len(s.Extras) == 0 {
		return "None"
	}
	return strings.Join(s.Extras, ", ")
}

// DedupKey identifies one reminder per booking and appointment instant.
// Bookings without an ID fall back to the customer email.
func (s Snapshot) DedupKey(appointment time.Time) string {
	id := s.BookingID
	if id == "" {
		id = strings.ToLower(s.CustomerEmail)
	}
	return "reminder:" + id + ":" + appointment.UTC().Format(time.RFC3339)
}
