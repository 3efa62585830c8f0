package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/mcp"
)

func newMcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search and sync tools over MCP stdio",
		Long:  "Start an MCP server on stdio. Logs are written to stderr so stdout carries protocol messages only.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(true, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(cfg, appOptions{exclusive: true, withSource: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ensureSchema(ctx); err != nil {
				return err
			}

			logging.Info("MCP server ready, listening on stdio", logging.String("version", version))
			err = mcp.NewServer(a.searcher, a.syncer, a.index, version).Serve(ctx)
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
