// Package pg connects to PostgreSQL with pgx/v5 and applies goose migrations.
//
// Connect opens a *pgxpool.Pool from Config, retrying while the database comes
// up. MigrateFS runs goose migrations embedded in the binary, which is how the
// queue schema in pgstore is shipped:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	err = pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.MigrationsTable, log)
//
// Healthcheck returns a readiness probe, and the Is*Error helpers classify
// *pgconn.PgError values.
package pg
