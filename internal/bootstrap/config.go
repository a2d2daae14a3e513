package bootstrap

import (
	"github.com/wavespoole/carwash/pkg/email"
	"github.com/wavespoole/carwash/pkg/httpserver"
	"github.com/wavespoole/carwash/pkg/logger"
	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/ratelimiter"
	"github.com/wavespoole/carwash/svc/reminder"
	"github.com/wavespoole/carwash/svc/vehicle"
)

// AppConfig is everything both processes read from the environment.
// Driver specific settings (PG_*, REDIS_*) are loaded only for the selected driver.
type AppConfig struct {
	Logger       logger.Config
	HTTP         httpserver.Config
	Queue        queue.Config
	Email        email.Config
	Reminder     reminder.Config
	Vehicle      vehicle.Config
	VehicleCache vehicle.CacheConfig
	RateLimit    ratelimiter.Config

	SQLitePath     string `env:"SQLITE_PATH" envDefault:"./data/queue.db"`
	WorkerHTTPAddr string `env:"WORKER_HTTP_ADDR" envDefault:":8081"`
	// EmbeddedWorker runs the worker inside the API process. Always on for the memory driver.
	EmbeddedWorker bool `env:"API_EMBEDDED_WORKER" envDefault:"false"`
}

// RunsEmbeddedWorker reports whether cmd/api must consume the queue itself.
func (c AppConfig) RunsEmbeddedWorker() bool {
	return c.EmbeddedWorker || c.Queue.Driver == DriverMemory
}
