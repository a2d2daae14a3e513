// Package validator builds declarative validation rules.
//
// Each helper returns a Rule pairing a Check func with a ValidationError.
// Apply evaluates rules and aggregates failures into ValidationErrors, which
// implements error:
//
//	err := validator.Apply(
//		validator.RequiredString("customer_name", s.CustomerName),
//		validator.ValidEmail("customer_email", s.CustomerEmail),
//		validator.ValidDate("appointment_date", s.AppointmentDate, time.DateOnly),
//		validator.ValidClockTime("appointment_time", s.AppointmentTime),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//		// errs.Map() feeds a 422 response body
//	}
package validator
