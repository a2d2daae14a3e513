package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Path creates a path parameter binder. extractor returns the value of a
// named route parameter, chi.URLParam fits as is.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrFailedToParsePath)
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return fmt.Errorf("%w: target must be a non-nil pointer", ErrFailedToParsePath)
		}
		rv = rv.Elem()
		if rv.Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a pointer to struct", ErrFailedToParsePath)
		}

		values := make(map[string][]string)
		rt := rv.Type()
		for i := range rv.NumField() {
			if !rv.Field(i).CanSet() {
				continue
			}
			name, skip := parseFieldTag(rt.Field(i), "path")
			if skip {
				continue
			}
			if value := extractor(r, name); value != "" {
				values[name] = []string{value}
			}
		}

		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}
