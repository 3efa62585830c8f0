package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/dropsearch/internal/api"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/metrics"
	"github.com/dshills/dropsearch/internal/source"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sync the folder, watch for changes and serve the search API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true, "stdout")
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
		logging.Fatal("index setup failed", logging.Err(err))
	}

	logging.Info("dropsearch starting",
		logging.String("version", version),
		logging.String("backend", cfg.Index.Backend),
		logging.String("folder", cfg.Dropbox.FolderPath))

	if _, err := a.syncer.RunFullSync(ctx); err != nil {
		if errors.Is(err, source.ErrProviderAuth) {
			return err
		}
		logging.Error("initial full sync failed", logging.Err(err))
	}

	apiServer := api.NewServer(a.searcher, a.syncer, a.index, api.Config{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		AppSecret:       cfg.Dropbox.AppSecret,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.syncer.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.syncer.Schedule(gctx, cfg.Sync.IndexingInterval)
		return nil
	})
	g.Go(func() error {
		a.syncer.RunNotifications(gctx)
		return nil
	})
	g.Go(func() error {
		apiServer.Cleanup(gctx)
		return nil
	})

	for _, srv := range []*http.Server{httpServer, metricsServer} {
		g.Go(func() error {
			logging.Info("listening", logging.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logging.Info("dropsearch stopped")
	return err
}
