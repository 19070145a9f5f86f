package auth

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrateOption configures Migrate
type MigrateOption func(*migrateConfig)

type migrateConfig struct {
	logger Logger
}

// WithMigrationLogger routes goose progress lines to logger
func WithMigrationLogger(logger Logger) MigrateOption {
	return func(c *migrateConfig) {
		c.logger = normalizeLogger(logger)
	}
}

// gooseLogger adapts Logger to goose.Logger
type gooseLogger struct {
	logger Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSuffix(format, "\n"), v...)
	os.Exit(1)
}

// Migrate applies the embedded goose migrations for dialect,
// either "sqlite" or "postgres".
func Migrate(ctx context.Context, db *sql.DB, dialect string, opts ...MigrateOption) error {
	cfg := migrateConfig{logger: defLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	var gooseDialect, dir string
	switch dialect {
	case "sqlite", "sqlite3":
		gooseDialect, dir = "sqlite3", "data/sql/migrations/sqlite"
	case "postgres", "pg", "pgx":
		gooseDialect, dir = "pgx", "data/sql/migrations/postgres"
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	goose.SetLogger(gooseLogger{logger: cfg.logger})
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}
