package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/dropsearch/internal/indexer"
	"github.com/dshills/dropsearch/internal/logging"
)

func newSyncCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single synchronization and exit",
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

			var stats *indexer.Statistics
			if incremental {
				stats, err = a.syncer.RunIncrementalSync(ctx)
			} else {
				stats, err = a.syncer.RunFullSync(ctx)
			}
			if err != nil {
				return err
			}

			printStats(cmd, stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "apply changes since the last cursor instead of a full listing")
	return cmd
}

func printStats(cmd *cobra.Command, stats *indexer.Statistics) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s sync: %d entries in %s", stats.Mode, stats.Entries, stats.Duration.Round(time.Millisecond))))

	actions := make([]string, 0, len(stats.Counts))
	for action := range stats.Counts {
		actions = append(actions, string(action))
	}
	sort.Strings(actions)
	for _, action := range actions {
		fmt.Fprintf(out, "  %-20s %d\n", action, stats.Counts[indexer.Action(action)])
	}

	for _, f := range stats.Failures {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("  failed %s: %v", f.Path, f.Err)))
	}
}
