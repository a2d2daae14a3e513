package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/wavespoole/carwash/handler"
	"github.com/wavespoole/carwash/pkg/binder"
)

func jsonBody[R any](eh handler.ErrorHandler) []handler.WrapOption[R] {
	return []handler.WrapOption[R]{
		handler.WithBinders[R](binder.JSON()),
		handler.WithErrorHandler[R](eh),
	}
}

func query[R any](eh handler.ErrorHandler) []handler.WrapOption[R] {
	return []handler.WrapOption[R]{
		handler.WithBinders[R](binder.Query()),
		handler.WithErrorHandler[R](eh),
	}
}

func path[R any](eh handler.ErrorHandler) []handler.WrapOption[R] {
	return []handler.WrapOption[R]{
		handler.WithBinders[R](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[R](eh),
	}
}
