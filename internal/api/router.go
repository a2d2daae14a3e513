package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/wavespoole/carwash/handler"
	"github.com/wavespoole/carwash/pkg/clientip"
	"github.com/wavespoole/carwash/pkg/httpserver"
	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/ratelimiter"
	"github.com/wavespoole/carwash/pkg/requestid"
	"github.com/wavespoole/carwash/svc/reminder"
	"github.com/wavespoole/carwash/svc/vehicle"
)

// BookingScheduler schedules and cancels reminders. *reminder.Scheduler satisfies it.
type BookingScheduler interface {
	Schedule(ctx context.Context, booking reminder.Snapshot) (reminder.Outcome, error)
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

// VehicleClassifier classifies a registration. *vehicle.Service satisfies it.
type VehicleClassifier interface {
	Classify(ctx context.Context, vrm string) (vehicle.Result, error)
}

// Deps are the services the API routes call. Nil Vehicles disables the
// vehicle endpoint and nil Metrics disables /metrics. VehicleLimiter, when
// set, limits vehicle lookups per client IP.
type Deps struct {
	Scheduler      BookingScheduler
	Inspector      queue.Inspector
	Vehicles       VehicleClassifier
	VehicleLimiter *ratelimiter.Bucket
	Metrics        http.Handler
	Checks         []httpserver.Check
	Logger         *slog.Logger
}

// NewRouter builds the API process router.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	eh := handler.NewErrorHandler(d.Logger)

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	mountOps(r, d.Logger, d.Metrics, d.Checks)

	r.Route("/api", func(r chi.Router) {
		b := &bookings{scheduler: d.Scheduler}
		r.Post("/bookings/confirmed", handler.Wrap(b.confirm, jsonBody[reminder.Snapshot](eh)...))

		rm := &reminders{scheduler: d.Scheduler, inspector: d.Inspector}
		r.Get("/reminders/dead-letters", handler.Wrap(rm.deadLetters, query[deadLettersRequest](eh)...))
		r.Get("/reminders/{id}", handler.Wrap(rm.get, path[reminderRequest](eh)...))
		r.Delete("/reminders/{id}", handler.Wrap(rm.cancel, path[reminderRequest](eh)...))

		if d.Vehicles != nil {
			v := &vehicles{classifier: d.Vehicles}
			vr := r.With()
			if d.VehicleLimiter != nil {
				vr = r.With(ratelimiter.Middleware(d.VehicleLimiter, clientip.GetIP))
			}
			vr.Get("/vehicle", handler.Wrap(v.classify, query[vehicleRequest](eh)...))
		}
	})

	return r
}

// NewOpsRouter builds the worker process router: health probes and metrics only.
func NewOpsRouter(log *slog.Logger, metrics http.Handler, checks ...httpserver.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	mountOps(r, log, metrics, checks)
	return r
}

func mountOps(r chi.Router, log *slog.Logger, metrics http.Handler, checks []httpserver.Check) {
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, 0, checks...))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
}
