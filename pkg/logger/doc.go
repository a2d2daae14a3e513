// Package logger builds *slog.Logger instances for the api and worker processes.
//
// New takes functional options for format, level, static attributes and
// context extractors. WithEnvironment picks text/debug for development and
// JSON/info for staging and production; FromConfig maps a Config loaded from
// APP_ENV, APP_NAME and LOG_LEVEL onto those options:
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//	log := logger.New(logger.FromConfig(cfg)...)
//	logger.SetAsDefault(log)
//
// Attribute helpers (BookingID, JobID, FireAt, Error, ...) keep key names
// consistent across packages. Helpers for optional values return an empty
// slog.Attr, which slog drops, so callers never need a nil check:
//
//	log.InfoContext(ctx, "reminder scheduled",
//		logger.BookingID(snap.BookingID),
//		logger.JobID(jobID),
//		logger.FireAt(fireAt))
package logger
