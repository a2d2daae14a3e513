package validator

import "fmt"

func MaxLenSlice[T any](field string, value []T, max int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) <= max
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must have at most %d items", max),
			TranslationKey: "validation.max_items",
			TranslationValues: map[string]any{
				"field": field,
				"max":   max,
			},
		},
	}
}

// NoEmptyStrings fails when any element is blank.
func NoEmptyStrings(field string, values []string) Rule {
	return Rule{
		Check: func() bool {
			for _, v := range values {
				if !RequiredString(field, v).Check() {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must not contain empty items",
			TranslationKey: "validation.no_empty_items",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}
