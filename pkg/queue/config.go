package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	Driver             string        `env:"QUEUE_DRIVER" envDefault:"memory"`
	Name               string        `env:"QUEUE_NAME" envDefault:"reminders"`
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxAttempts        int8          `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase        time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"1m"`
}

// Backoff returns the retry policy described by the config.
func (c Config) Backoff() BackoffPolicy {
	return ExponentialBackoff{Base: c.BackoffBase}
}
