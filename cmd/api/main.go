// Command api accepts confirmed bookings over HTTP and schedules their reminders.
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
		slog.Error("api exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	_ = config.LoadEnv()

	var cfg bootstrap.AppConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	log := bootstrap.NewLogger(cfg.Logger, "api")

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

	m := metrics.New()
	sched, err := bootstrap.NewScheduler(st, cfg, log, m)
	if err != nil {
		return err
	}
	limiter, err := bootstrap.NewVehicleLimiter(cfg)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Scheduler:      sched,
		Inspector:      st,
		Vehicles:       bootstrap.NewVehicleService(cfg),
		VehicleLimiter: limiter,
		Metrics:        m.Handler(),
		Checks:         st.Checks,
		Logger:         log,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RunsEmbeddedWorker() {
		mailer, err := bootstrap.NewMailer(cfg.Email)
		if err != nil {
			return err
		}
		w, err := bootstrap.NewWorker(st, cfg, mailer, log, m)
		if err != nil {
			return err
		}
		log.Info("running embedded worker", logger.Driver(cfg.Queue.Driver))
		g.Go(w.Run(ctx))
	}

	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
	g.Go(func() error { return srv.Run(ctx, router) })

	return g.Wait()
}
