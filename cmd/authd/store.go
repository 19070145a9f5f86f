package main

import (
	"context"
	"database/sql"
	"io"

	"github.com/campusportal/go-auth"
	"github.com/campusportal/go-auth/repository/mongostore"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openSQL opens the relational database behind cfg
func openSQL(cfg DatabaseConfig, debug bool) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch cfg.Driver {
	case "sqlite":
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			break
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case "postgres":
		sqldb, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			break
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("%s is not a sql driver", cfg.Driver)
	}
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Driver).Wrapf(err, "failed to open database")
	}

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// migrateSQL applies the embedded migrations
func migrateSQL(ctx context.Context, db *bun.DB, driver string, logger auth.Logger) error {
	if err := auth.Migrate(ctx, db.DB, driver, auth.WithMigrationLogger(logger)); err != nil {
		return oops.Code("MIGRATION_FAILED").With("driver", driver).Wrap(err)
	}
	return nil
}

// openStore returns the credential store selected by cfg.Database
func openStore(ctx context.Context, cfg Config, logger auth.Logger) (auth.RepositoryManager, io.Closer, error) {
	if cfg.Database.Driver == "mongo" {
		client, err := mongostore.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
		}
		users, err := mongostore.New(ctx, client.Database(cfg.Database.Name))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
		}
		return auth.NewStoreManager(users), closerFunc(func() error {
			return client.Disconnect(context.Background())
		}), nil
	}

	db, err := openSQL(cfg.Database, cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrateSQL(ctx, db, cfg.Database.Driver, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	repo := auth.NewRepositoryManager(db)
	return repo, db, nil
}
