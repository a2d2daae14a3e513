// Command worker delivers due reminders from the queue and serves health and metrics.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "time/tzdata"

	"github.com/wavespoole/carwash/internal/api"
	"github.com/wavespoole/carwash/internal/bootstrap"
	"github.com/wavespoole/carwash/pkg/config"
	"github.com/wavespoole/carwash/pkg/httpserver"
	"github.com/wavespoole/carwash/pkg/logger"
	"github.com/wavespoole/carwash/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	_ = config.LoadEnv()

	var cfg bootstrap.AppConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	log := bootstrap.NewLogger(cfg.Logger, "worker")

	if cfg.Queue.Driver == bootstrap.DriverMemory {
		log.Warn("memory queue is private to one process; the api process runs its own worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("closing queue storage", logger.Error(err))
		}
	}()

	mailer, err := bootstrap.NewMailer(cfg.Email)
	if err != nil {
		return err
	}

	m := metrics.New()
	w, err := bootstrap.NewWorker(st, cfg, mailer, log, m)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.HTTP,
		httpserver.WithAddr(cfg.WorkerHTTPAddr),
		httpserver.WithLogger(log),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(w.Run(ctx))
	g.Go(func() error { return srv.Run(ctx, api.NewOpsRouter(log, m.Handler(), st.Checks...)) })

	return g.Wait()
}
