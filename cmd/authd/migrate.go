package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply pending migrations to the sqlite or postgres credential store.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Database.Validate(); err != nil {
		return err
	}

	if cfg.Database.Driver == "mongo" {
		return oops.Code("CONFIG_INVALID").Errorf("mongo needs no migrations")
	}

	ctx := context.Background()
	logger := slogLogger{log: newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Debug)}

	cmd.Println("Connecting to database...")
	db, err := openSQL(cfg.Database, cfg.Debug)
	if err != nil {
		return err
	}
	defer db.Close()

	cmd.Println("Running migrations...")
	if err := migrateSQL(ctx, db, cfg.Database.Driver, logger); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
