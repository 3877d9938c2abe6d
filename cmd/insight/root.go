package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Natural-language data analysis agent",
	Long: `Insight answers questions about a SQL database in plain language.

Each question is planned into a sequence of analysis tools (SQL queries,
statistics, charts, reports) which are executed against the configured
database. The results are then summarised by the language model.

Core capabilities:
- Plans tool pipelines from a natural-language question
- Profiles, correlates and charts tabular data
- Keeps per-session conversation history
- Serves the agent over an HTTP API`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(migrateCmd)
}
