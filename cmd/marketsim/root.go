package main

import (
	"github.com/spf13/cobra"

	"github.com/tickhouse/marketsim/config"
	"github.com/tickhouse/marketsim/logging"
)

var rootArgs struct {
	configPath string
	env        string
}

var rootCmd = &cobra.Command{
	Use:   "marketsim",
	Short: "Deterministic market simulation core",
	Long: "marketsim re-buckets candle streams into larger intervals and " +
		"simulates order fills against candle price ranges over an exact " +
		"decimal balance ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.configPath, "config", config.FileName(), "path to the TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&rootArgs.env, "env", "dev", "log environment, dev or prod")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(replayCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configured TOML file, falling back to defaults when
// it does not exist.
func loadConfig(log *logging.Logger) config.Config {
	cfg, err := config.Read(rootArgs.configPath)
	if err != nil {
		log.Info("using default configuration",
			logging.String("path", rootArgs.configPath),
		)
		def := config.NewDefaultConfig()
		return def
	}
	return *cfg
}

func newLogger() *logging.Logger {
	return logging.NewLoggerFromEnv(rootArgs.env)
}
