package validator

import (
	"net/mail"
	"regexp"
	"strings"
)

// registrationRegex matches a UK registration mark once spaces are removed.
var registrationRegex = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

// ValidEmail validates a bare address (no display name) with a dotted domain.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if strings.TrimSpace(value) == "" {
				return false
			}

			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value {
				return false
			}

			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}

			if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}

			return true
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid email address",
			TranslationKey: "validation.email",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}

// ValidRegistration validates a vehicle registration mark, case and spaces ignored.
func ValidRegistration(field, value string) Rule {
	return Rule{
		Check: func() bool {
			vrm := strings.ToUpper(strings.ReplaceAll(value, " ", ""))
			return registrationRegex.MatchString(vrm)
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid registration mark",
			TranslationKey: "validation.registration",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}
