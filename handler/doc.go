// Package handler turns typed request handlers into http.HandlerFunc.
//
// A handler receives a bound request struct and returns a Response:
//
//	type ReminderRequest struct {
//		ID string `path:"id"`
//	}
//
//	func getReminder(ctx handler.Context, req ReminderRequest) handler.Response {
//		task, err := inspector.GetTask(ctx, uuid.MustParse(req.ID))
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(task)
//	}
//
//	r.Get("/api/reminders/{id}", handler.Wrap(getReminder,
//		handler.WithBinders[ReminderRequest](binder.Path(chi.URLParam)),
//	))
//
// Binders run in order and the first failure goes to the ErrorHandler.
// NewErrorHandler logs the failure and answers with the JSON error envelope:
// HTTPError picks the status, ValidationError answers 422 with field details,
// binder errors answer 400 or 415.
package handler
