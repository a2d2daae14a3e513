// Package binder decodes HTTP request data into structs.
//
// Each binder reads one source and is meant to be chained, the way the handler
// package applies them in order:
//
//	type CancelRequest struct {
//		ID string `path:"id"`
//	}
//
//	r.Delete("/api/reminders/{id}", handler.Wrap(cancel,
//		handler.WithBinders[CancelRequest](binder.Path(chi.URLParam)),
//	))
//
// JSON bodies are decoded strictly: unknown fields, trailing data and bodies
// over DefaultMaxJSONSize are rejected. Query and path binders read the
// `query` and `path` struct tags; a missing tag falls back to the lower-cased
// field name and "-" skips the field.
package binder
