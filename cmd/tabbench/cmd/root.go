// Package cmd implements the CLI commands for tabbench.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BotBlake/tabbench/internal/config"
	"github.com/BotBlake/tabbench/internal/observability"
	"github.com/BotBlake/tabbench/internal/version"
)

var cfgFile string
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "tabbench",
	Short:   "Adaptive concurrency-probe transcoding benchmark client",
	Version: version.Short(),
	Long: `tabbench measures how many concurrent real-time transcode streams a
machine can sustain for a given accelerator, by adaptively growing and
scaling back the number of parallel transcodes until it finds the
breaking point.

Configuration is primarily via environment variables:
  TABBENCH_CATALOG_BASE_URL      - Catalog service URL
  TABBENCH_CATALOG_TOKEN         - Catalog bearer token
  TABBENCH_TRANSCODER_BINARY_PATH - Path to the transcoder binary
  TABBENCH_LOGGING_LEVEL         - Log level (debug, info, warn, error)`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded
		return initLogging(cfg)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (default: config.yaml in ., ./configs, /etc/tabbench, or $HOME/.tabbench)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// initLogging builds the shared structured logger from resolved
// configuration, with CLI flags overriding config/env values only
// when explicitly set.
func initLogging(c *config.Config) error {
	logCfg := c.Logging

	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg.Level = strings.ToLower(logCfg.Level)
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)
	return nil
}
