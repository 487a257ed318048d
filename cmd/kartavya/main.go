package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/kartavya/internal/config"
	"github.com/crimson-sun/kartavya/internal/logging"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "kartavya",
	Short: "Civic issue reporting with AI severity rating",
	Long: `Kartavya accepts civic issue reports with photos, rates each photo's
severity from image classifier predictions, and serves the report feed,
reporter stats and notifications over an HTTP API.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			logging.Init(logJSON, logging.ParseLevel(logLevel))
			return err
		}
		logging.Init(logJSON, logging.ParseLevel(resolveLogLevel(cmd, cfg)))
		return nil
	},
}

// resolveLogLevel prefers an explicit --log-level over the configured
// level, which already layers KARTAVYA_LOG_LEVEL over the config file.
func resolveLogLevel(cmd *cobra.Command, cfg config.Config) string {
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		return logLevel
	}
	return cfg.LogLevel
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error (overrides log_level and KARTAVYA_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")

	rootCmd.AddCommand(serveCmd, analyzeCmd, classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kartavya: %v\n", err)
		os.Exit(1)
	}
}
