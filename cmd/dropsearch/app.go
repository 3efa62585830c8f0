package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/dshills/dropsearch/internal/config"
	"github.com/dshills/dropsearch/internal/extractor"
	"github.com/dshills/dropsearch/internal/identity"
	"github.com/dshills/dropsearch/internal/index"
	"github.com/dshills/dropsearch/internal/indexer"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/searcher"
	"github.com/dshills/dropsearch/internal/source"
	"github.com/dshills/dropsearch/internal/source/dropbox"
	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/internal/storage/blevestore"
)

const lockFileName = "dropsearch.lock"

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	lock     *flock.Flock
	engine   storage.Engine
	index    *index.Index
	source   *source.Adapter // nil without an access token
	searcher *searcher.Searcher
	syncer   *indexer.Syncer // nil without an access token
}

type appOptions struct {
	// exclusive takes the data directory lock
	exclusive bool
	// withSource requires Dropbox credentials and builds the syncer
	withSource bool
}

// openApp wires storage, index, source, searcher and syncer
func openApp(cfg *config.Config, opts appOptions) (*app, error) {
	if err := os.MkdirAll(cfg.Index.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &app{cfg: cfg}

	if opts.exclusive {
		l, err := lockDataDir(cfg.Index.DataDir)
		if err != nil {
			return nil, err
		}
		a.lock = l
	}

	engine, err := openEngine(cfg.Index)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine

	a.index = index.New(engine, index.Config{
		Name:         cfg.Index.Name,
		StagingName:  cfg.Index.PipelineIndex,
		PipelineName: cfg.Index.PipelineName,
		Timeout:      cfg.Index.Timeout,
		IndexedChars: cfg.Index.IndexedChars,
	})

	var links searcher.LinkResolver
	if cfg.Dropbox.AccessToken != "" {
		store, err := dropbox.New(dropbox.Config{
			AccessToken: cfg.Dropbox.AccessToken,
			Timeout:     cfg.Dropbox.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.source = source.NewAdapter(store, source.Options{IncludeDeleted: cfg.Dropbox.IncludeDeleted})
		links = a.source
	} else if opts.withSource {
		a.Close()
		return nil, errors.New("DROPBOX_ACCESS_TOKEN is required")
	}

	a.searcher = searcher.NewSearcher(a.index, links, searcher.Config{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})

	if a.source != nil {
		a.syncer = indexer.New(indexer.Deps{
			Source:    a.source,
			Index:     a.index,
			Extractor: extractor.New(a.index),
			Freshness: identity.NewFreshnessCache(cfg.Sync.FreshnessCacheSize, cfg.Sync.FreshnessTTL),
			Cache:     a.searcher,
		}, indexer.Config{
			Root:        cfg.Dropbox.FolderPath,
			BatchSize:   cfg.Sync.BatchSize,
			MaxFileSize: cfg.Sync.MaxFileSize,
			Extensions:  cfg.Sync.SupportedExtensions,
			PollBackoff: cfg.Sync.PollBackoff,
		})
	}

	return a, nil
}

// lockDataDir takes the data directory lock without waiting
func lockDataDir(dir string) (*flock.Flock, error) {
	lockPath := filepath.Join(dir, lockFileName)
	l := flock.New(lockPath)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire data directory lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another dropsearch process is using %s (lock: %s)", dir, lockPath)
	}
	return l, nil
}

func sqlitePath(cfg config.IndexConfig) string {
	return filepath.Join(cfg.DataDir, "dropsearch.db")
}

// openEngine opens the configured index backend under the data directory
func openEngine(cfg config.IndexConfig) (storage.Engine, error) {
	switch cfg.Backend {
	case config.BackendBleve:
		engine, err := blevestore.New(filepath.Join(cfg.DataDir, "bleve"))
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
		return engine, nil
	default:
		engine, err := storage.NewSQLiteEngine(sqlitePath(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite index: %w", err)
		}
		return engine, nil
	}
}

// ensureSchema creates the index, staging index and pipeline
func (a *app) ensureSchema(ctx context.Context) error {
	if err := a.index.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to set up index schema: %w", err)
	}
	return nil
}

// Close releases the engine and the data directory lock
func (a *app) Close() {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			logging.Warn("failed to close index engine", logging.Err(err))
		}
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}
