package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/dropsearch/internal/config"
	"github.com/dshills/dropsearch/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var envFile string

// newRootCmd creates the root command for dropsearch
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dropsearch",
		Short:         "Dropbox full-text search service",
		Long:          "Dropsearch mirrors a Dropbox folder into a full-text index and serves search over HTTP, MCP and the command line.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the environment")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newMcpCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads and validates settings and initializes logging.
// logOutput is stdout or stderr.
func loadConfig(requireToken bool, logOutput string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireToken); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: logOutput,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}
