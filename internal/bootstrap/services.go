package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/wavespoole/carwash/pkg/email"
	"github.com/wavespoole/carwash/pkg/logger"
	"github.com/wavespoole/carwash/pkg/metrics"
	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/ratelimiter"
	"github.com/wavespoole/carwash/pkg/requestid"
	"github.com/wavespoole/carwash/svc/reminder"
	"github.com/wavespoole/carwash/svc/vehicle"
)

// NewLogger builds the process logger and installs it as slog's default.
func NewLogger(cfg logger.Config, component string) *slog.Logger {
	opts := append(logger.FromConfig(cfg),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
		logger.WithAttr(logger.Component(component)),
	)
	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return log
}

// NewMailer returns the sender named by cfg.Provider.
func NewMailer(cfg email.Config) (email.EmailSender, error) {
	switch cfg.Provider {
	case email.ProviderDev, "":
		return email.NewDevSender(cfg.DevOutputDir), nil
	case email.ProviderPostmark:
		return email.NewPostmarkClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEmailProvider, cfg.Provider)
	}
}

// NewScheduler wires the reminder scheduler to storage.
func NewScheduler(st queue.Storage, cfg AppConfig, log *slog.Logger, m *metrics.Metrics) (*reminder.Scheduler, error) {
	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	enq, err := queue.NewEnqueuer(st,
		queue.WithDefaultQueue(cfg.Queue.Name),
		queue.WithDefaultMaxAttempts(cfg.Queue.MaxAttempts),
	)
	if err != nil {
		return nil, err
	}

	opts := []reminder.SchedulerOption{
		reminder.WithLeadTime(cfg.Reminder.LeadTime),
		reminder.WithLocation(loc),
		reminder.WithCanceler(st),
		reminder.WithLogger(log),
		reminder.WithMetrics(m),
	}
	if cfg.Reminder.Deduplicate {
		opts = append(opts, reminder.WithDeduplication())
	}
	return reminder.NewScheduler(enq, opts...)
}

// NewWorker builds a worker consuming the reminder queue with the reminder handler registered.
func NewWorker(st queue.Storage, cfg AppConfig, mailer email.EmailSender, log *slog.Logger, m *metrics.Metrics) (*queue.Worker, error) {
	sender, err := reminder.NewSender(mailer, cfg.Reminder.Business, log)
	if err != nil {
		return nil, err
	}

	w, err := queue.NewWorker(st,
		queue.WithQueues(cfg.Queue.Name),
		queue.WithPullInterval(cfg.Queue.PollInterval),
		queue.WithLockTimeout(cfg.Queue.LockTimeout),
		queue.WithMaxConcurrentTasks(cfg.Queue.MaxConcurrentTasks),
		queue.WithShutdownTimeout(cfg.Queue.ShutdownTimeout),
		queue.WithWorkerLogger(log),
		queue.WithWorkerMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	if err := w.RegisterHandler(reminder.NewHandler(sender)); err != nil {
		return nil, err
	}
	return w, nil
}

// NewVehicleService builds the cached vehicle classifier. Without VEHICLE_API_KEY
// every lookup fails with vehicle.ErrNotConfigured.
func NewVehicleService(cfg AppConfig) *vehicle.Service {
	client := vehicle.NewClient(cfg.Vehicle)
	return vehicle.NewService(vehicle.NewCachedLooker(client, cfg.VehicleCache))
}

// NewVehicleLimiter builds the per-IP limiter for vehicle lookups.
func NewVehicleLimiter(cfg AppConfig) (*ratelimiter.Bucket, error) {
	return ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), cfg.RateLimit)
}
