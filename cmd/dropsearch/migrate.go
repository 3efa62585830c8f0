package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/dropsearch/internal/config"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/storage"
)

var errMigrateBackend = errors.New("schema migrations apply to the sqlite backend only")

func newMigrateCmd() *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations, or roll back the latest one",
		Long: `Apply every pending migration to the SQLite index and print the schema version.
With --rollback the most recent migration is undone instead. Any later command
that opens the index migrates it forward again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync() }()

			return runMigrate(cmd.Context(), cmd.OutOrStdout(), cfg.Index, rollback)
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the most recent migration")
	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, cfg config.IndexConfig, rollback bool) error {
	if cfg.Backend == config.BackendBleve {
		return errMigrateBackend
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	lock, err := lockDataDir(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	if rollback {
		v, err := storage.RollbackDatabase(ctx, sqlitePath(cfg))
		if err != nil {
			return err
		}
		logging.Info("rolled back schema migration", logging.String("version", v))
		fmt.Fprintf(out, "schema version %s\n", v)
		return nil
	}

	engine, err := storage.NewSQLiteEngine(sqlitePath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	v, err := engine.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %s\n", v)
	return nil
}
