package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/shapegen/internal/config"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

var (
	configPath string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every completion query and response")
}

var rootCmd = &cobra.Command{
	Use:           "shapegen",
	Short:         "Fill structured schemas by querying a language model",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig layers the --config file, the environment and then the
// command's own flag overrides, and validates the result.
func loadConfig(override func(*config.Config)) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.LogMode, verbose)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
