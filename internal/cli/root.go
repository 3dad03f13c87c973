// Package cli provides the datagym command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/ashureev/datagym/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

type globalOptions struct {
	dbPath      string
	databaseURL string
	logLevel    string
}

// NewRootCmd creates and returns the root command. Flag defaults are read
// from the environment.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "datagym",
		Short: "DataGym - practice SQL and Python on your own data",
		Long: `DataGym evaluates SQL queries and Python (Starlark) scripts against
tabular datasets, and manages the lesson catalogue used by the web lab.`,
		Version: Version,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Setup(opts.logLevel, "text")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db-path", envOr("DB_PATH", "./data/datagym.db"), "SQLite store path")
	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL (replaces the SQLite store)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newScriptCommand())
	rootCmd.AddCommand(newLessonsCommand(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "DataGym v%s\n", Version)
		},
	}
}
