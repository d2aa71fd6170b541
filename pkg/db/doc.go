// Package db wraps [github.com/jackc/pgx/v5/pgxpool] with connection
// retry, environment-based configuration, and goose migrations for the
// application registry.
//
// Settings come from environment variables:
//
//	DATABASE_CONN_URL           - PostgreSQL connection URL (required)
//	DATABASE_MAX_OPEN_CONNS     - Maximum open connections (default: 10)
//	DATABASE_MIN_CONNS          - Minimum idle connections (default: 2)
//	DATABASE_HEALTHCHECK_PERIOD - Pool health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - Maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - Maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
//	DATABASE_MIGRATIONS_TABLE   - Migrations table name (default: schema_migrations)
//
// Migrations are embedded SQL files applied at startup:
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	pool, err := db.Connect(ctx, cfg)
//	if err != nil { ... }
//	if err := db.Migrate(ctx, pool, migrations, cfg.MigrationsTable, logger); err != nil { ... }
package db
