package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wavespoole/carwash/pkg/config"
	"github.com/wavespoole/carwash/pkg/httpserver"
	"github.com/wavespoole/carwash/pkg/logger"
	"github.com/wavespoole/carwash/pkg/pg"
	"github.com/wavespoole/carwash/pkg/queue"
	"github.com/wavespoole/carwash/pkg/queue/pgstore"
	"github.com/wavespoole/carwash/pkg/queue/redisstore"
	"github.com/wavespoole/carwash/pkg/queue/sqlitestore"
	"github.com/wavespoole/carwash/pkg/redis"
)

// Queue drivers accepted in QUEUE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Storage is the opened queue backend with its readiness checks.
// Close releases the backend connection as well as the store.
type Storage struct {
	queue.Storage
	Checks []httpserver.Check

	closers []func() error
}

// Close closes the store and then its connection.
func (s *Storage) Close() error {
	errs := []error{s.Storage.Close()}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStorage opens the backend named by cfg.Queue.Driver.
// The postgres driver applies pending schema migrations before returning.
func OpenStorage(ctx context.Context, cfg AppConfig, log *slog.Logger) (*Storage, error) {
	backoff := cfg.Queue.Backoff()
	log = log.With(logger.Driver(cfg.Queue.Driver))

	switch cfg.Queue.Driver {
	case DriverMemory, "":
		log.WarnContext(ctx, "using in-memory queue: reminders are lost on restart")
		return &Storage{
			Storage: queue.NewMemoryStorage(queue.WithMemoryBackoff(backoff)),
			Checks:  []httpserver.Check{{Name: "queue", Fn: func(context.Context) error { return nil }}},
		}, nil

	case DriverRedis:
		var rc redis.Config
		if err := config.Load(&rc); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, rc)
		if err != nil {
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		log.InfoContext(ctx, "queue storage connected")
		return &Storage{
			Storage: redisstore.New(client, redisstore.WithPrefix(rc.QueuePrefix), redisstore.WithBackoff(backoff)),
			Checks:  []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(client)}},
			closers: []func() error{client.Close},
		}, nil

	case DriverPostgres:
		var pc pg.Config
		if err := config.Load(&pc); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pc)
		if err != nil {
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		if err := pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pc.MigrationsTable, log); err != nil {
			pool.Close()
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		log.InfoContext(ctx, "queue storage connected")
		return &Storage{
			Storage: pgstore.New(pool, pgstore.WithBackoff(backoff)),
			Checks:  []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
			closers: []func() error{func() error { pool.Close(); return nil }},
		}, nil

	case DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Join(ErrStorageUnavailable, err)
			}
		}
		st, err := sqlitestore.Open(ctx, cfg.SQLitePath, sqlitestore.WithBackoff(backoff))
		if err != nil {
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		log.InfoContext(ctx, "queue storage opened", slog.String("path", cfg.SQLitePath))
		return &Storage{
			Storage: st,
			Checks:  []httpserver.Check{{Name: "sqlite", Fn: st.Ping}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Queue.Driver)
	}
}
