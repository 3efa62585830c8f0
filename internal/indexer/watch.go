package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/metrics"
	"github.com/dshills/dropsearch/internal/source"
)

// Watch long-polls the change feed and runs an incremental sync whenever
// changes are reported. Errors are logged and retried after PollBackoff.
// It returns only when ctx is cancelled.
func (s *Syncer) Watch(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cursor, err := s.ensureCursor(ctx)
		if err != nil {
			s.pollFailed(ctx, err)
			continue
		}

		signal, err := s.source.PollForChanges(ctx, cursor)
		if errors.Is(err, source.ErrCursorReset) {
			if _, err := s.recoverCursor(ctx, cursor); err != nil {
				s.pollFailed(ctx, err)
			}
			continue
		}
		if err != nil {
			s.pollFailed(ctx, err)
			continue
		}

		if signal.Changes {
			if _, err := s.RunIncrementalSync(ctx); err != nil && ctx.Err() == nil {
				logging.Warn("incremental sync failed", logging.Err(err))
				sleep(ctx, s.cfg.PollBackoff)
				continue
			}
		}

		if signal.Backoff > 0 {
			logging.Debug("provider requested backoff", logging.Duration("backoff", signal.Backoff))
			sleep(ctx, signal.Backoff)
		}
	}
}

// recoverCursor replaces a cursor the provider reported as reset and runs
// a full sync to cover the changes it can no longer replay. It does nothing
// when another run already replaced stale.
func (s *Syncer) recoverCursor(ctx context.Context, stale source.Cursor) (*Statistics, error) {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()

	if s.cursor != stale {
		return nil, nil
	}

	s.running.Add(1)
	defer s.running.Add(-1)

	return s.fallBackToFull(ctx, newStatistics(ModeIncremental))
}

func (s *Syncer) pollFailed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	metrics.RecordPollError()
	logging.Warn("polling for changes failed",
		logging.Err(err),
		logging.Duration("backoff", s.cfg.PollBackoff))
	sleep(ctx, s.cfg.PollBackoff)
}

// Schedule runs a full sync every interval until ctx is cancelled. Ticks
// that find a full sync running are skipped.
func (s *Syncer) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := s.RunFullSync(ctx)
			switch {
			case errors.Is(err, ErrSyncInProgress):
				logging.Debug("skipping scheduled sync, previous run still in progress")
			case err != nil && ctx.Err() == nil:
				logging.Warn("scheduled sync failed", logging.Err(err))
			}
		}
	}
}

// Notify requests an incremental sync. Requests made while one is pending
// are coalesced.
func (s *Syncer) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// RunNotifications serves Notify requests until ctx is cancelled
func (s *Syncer) RunNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			if _, err := s.RunIncrementalSync(ctx); err != nil && ctx.Err() == nil {
				logging.Warn("notified sync failed", logging.Err(err))
			}
		}
	}
}

// sleep waits for d or until ctx is cancelled
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
