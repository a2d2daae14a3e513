package validator

import (
	"fmt"
	"time"
)

// ValidDate validates that value parses with the given layout, e.g. time.DateOnly.
func ValidDate(field, value, layout string) Rule {
	return Rule{
		Check: func() bool {
			_, err := time.Parse(layout, value)
			return err == nil
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be a date in %s format", layout),
			TranslationKey: "validation.date_format",
			TranslationValues: map[string]any{
				"field":  field,
				"layout": layout,
			},
		},
	}
}

// ValidClockTime accepts HH:MM or HH:MM:SS on a 24-hour clock.
func ValidClockTime(field, value string) Rule {
	return Rule{
		Check: func() bool {
			_, err := ParseClockTime(value)
			return err == nil
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a time in HH:MM or HH:MM:SS format",
			TranslationKey: "validation.clock_time",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}

// ParseClockTime parses HH:MM or HH:MM:SS and returns the offset from midnight.
func ParseClockTime(value string) (time.Duration, error) {
	layout := "15:04:05"
	if len(value) == len("15:04") {
		layout = "15:04"
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
