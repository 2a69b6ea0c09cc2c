package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/flixetl/internal/config"
)

// flag overrides applied on top of the environment
var (
	pipelinePath string
	dataDir      string
	dbDriver     string
	dbDSN        string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Build the Netflix/IMDb catalog from public datasets",
	Long: `etl fetches the IMDb title dumps, the Netflix originals list, the
cancelled-shows page and the NFLX price history, cleans them and reloads
the relational catalog.

Examples:
  etl build            rebuild only what changed
  etl build --force    rerun every task
  etl status           show the tasks of the latest run
  etl serve            expose the trigger and status API`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pipelinePath, "pipeline", "", "pipeline declaration (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for raw and cleaned datasets")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "database connection string")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newServeCmd())
}

// loadConfig reads the environment, applies flag overrides and validates.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if pipelinePath != "" {
		cfg.PipelinePath = pipelinePath
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if dbDSN != "" {
		cfg.DBDSN = dbDSN
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
