// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts and health-check handlers. Both the api and worker processes serve
// through it.
//
// Run blocks until the context is cancelled, then shuts the server down with
// the configured deadline:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// LivenessHandler always reports ALIVE. ReadinessHandler runs named checks
// (queue store ping, for example) and reports 503 when any of them fail.
package httpserver
