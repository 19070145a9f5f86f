package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the authd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authd",
		Short: "Student portal authentication server",
		Long: `authd serves registration, cookie sessions and mailed password
resets for the student portal.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file path (yaml)")
	flags.String("log-format", "text", "log format, text or json")
	flags.Bool("debug", false, "verbose logging and SQL query logs")
	flags.String("database.driver", "", "sqlite, postgres or mongo")
	flags.String("database.dsn", "", "database connection string")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
