package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/wavespoole/carwash/pkg/logger"
)

// Check is a named readiness dependency, such as the queue store.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// readinessTimeout bounds a whole readiness probe when the caller passes zero.
const readinessTimeout = 3 * time.Second

// LivenessHandler always answers 200 with body "ALIVE".
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// ReadinessHandler runs every check under one deadline derived from the request.
// It answers 200 when all pass and 503 otherwise, with a JSON body mapping each
// check name to "ok" or its error message.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = newNoopLogger()
	}
	if timeout <= 0 {
		timeout = readinessTimeout
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					slog.String("check", c.Name),
					logger.Error(err))
				result[c.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			result[c.Name] = "ok"
		}

		body := struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}{Status: "READY", Checks: result}
		if status != http.StatusOK {
			body.Status = "NOT_READY"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
