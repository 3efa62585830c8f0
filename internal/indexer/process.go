package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/dropsearch/internal/extractor"
	"github.com/dshills/dropsearch/internal/identity"
	"github.com/dshills/dropsearch/internal/metrics"
	"github.com/dshills/dropsearch/internal/source"
	"github.com/dshills/dropsearch/pkg/types"
)

// processEntries runs entries in sequential batches. Cancellation is only
// observed between batches. With invalidate set, cached responses for every
// path a batch changed are dropped as soon as the batch completes.
func (s *Syncer) processEntries(ctx context.Context, entries []source.Entry, stats *Statistics, invalidate bool) error {
	for start := 0; start < len(entries); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+s.cfg.BatchSize, len(entries))

		outcomes := s.processBatch(ctx, entries[start:end])

		var changed []string
		for _, o := range outcomes {
			s.record(stats, o)
			if o.changed() {
				changed = append(changed, o.Path)
			}
		}
		if invalidate && s.cache != nil && len(changed) > 0 {
			s.cache.InvalidatePaths(changed)
		}
	}
	return nil
}

// processBatch processes every member of batch concurrently. Members never
// cancel each other and always reach a terminal outcome.
func (s *Syncer) processBatch(ctx context.Context, batch []source.Entry) []Outcome {
	start := time.Now()
	defer func() { metrics.RecordBatch(time.Since(start)) }()

	bctx := context.WithoutCancel(ctx)
	outcomes := make([]Outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, entry := range batch {
		g.Go(func() error {
			outcomes[i] = s.processEntry(bctx, entry)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Syncer) processEntry(ctx context.Context, entry source.Entry) Outcome {
	switch e := entry.(type) {
	case source.File:
		return s.processFile(ctx, e)
	case source.Deletion:
		return s.processDeletion(ctx, e)
	default:
		return Outcome{Path: entry.EntryPath(), Action: ActionFailed, Err: fmt.Errorf("unknown entry type %T", entry)}
	}
}

// processFile applies the size, type and freshness checks, then extracts
// and indexes the file
func (s *Syncer) processFile(ctx context.Context, f source.File) Outcome {
	out := Outcome{Path: f.Path}

	if f.SizeBytes > s.cfg.MaxFileSize {
		out.Action = ActionSkippedOversize
		return out
	}

	ext := fileExtension(f.Name)
	if _, ok := s.extensions["."+ext]; !ok || ext == "" {
		out.Action = ActionSkippedUnsupported
		return out
	}

	if s.freshness != nil && s.freshness.ShouldSkip(f.ContentID, f.Path, f.ModifiedAt) {
		out.Action = ActionSkippedFresh
		return out
	}

	out.DocumentID = identity.DocumentID(f.Path, f.ModifiedAt)
	content, err := s.extractor.Extract(ctx,
		extractor.Metadata{SourcePath: f.Path, ModifiedAt: f.ModifiedAt},
		func(ctx context.Context) ([]byte, error) {
			return s.source.Download(ctx, f.Path)
		})
	if errors.Is(err, extractor.ErrUpToDate) {
		s.remember(f)
		out.Action = ActionSkippedCurrent
		return out
	}
	if err != nil {
		out.Action, out.Err = ActionFailed, err
		return out
	}

	doc := &types.Document{
		ID:         out.DocumentID,
		FileName:   f.Name,
		FileType:   ext,
		FileSize:   f.SizeBytes,
		Content:    content,
		CreatedAt:  f.CreatedAt,
		ModifiedAt: f.ModifiedAt,
		SourcePath: f.Path,
	}
	s.markWritten(f.Path)
	if err := s.index.Upsert(ctx, doc); err != nil {
		out.Action, out.Err = ActionFailed, err
		return out
	}

	s.remember(f)
	out.Action = ActionIndexed
	return out
}

func (s *Syncer) remember(f source.File) {
	if s.freshness != nil {
		s.freshness.Record(f.ContentID, f.Path, f.ModifiedAt)
	}
}

// forget drops freshness records for path and everything below it
func (s *Syncer) forget(path string) {
	if s.freshness != nil {
		s.freshness.ForgetPath(path)
	}
}

// processDeletion removes the document for a deleted file, or every document
// below a deleted folder
func (s *Syncer) processDeletion(ctx context.Context, d source.Deletion) Outcome {
	out := Outcome{Path: d.Path}

	var ids []string
	id, found, err := s.index.FindBySourcePath(ctx, d.Path)
	if err != nil {
		out.Action, out.Err = ActionFailed, err
		return out
	}
	if found {
		ids = append(ids, id)
		out.DocumentID = id
	}

	nested, err := s.index.FindUnderPath(ctx, d.Path)
	if err != nil {
		out.Action, out.Err = ActionFailed, err
		return out
	}
	ids = append(ids, nested...)
	s.forget(d.Path)

	if len(ids) == 0 {
		out.Action = ActionDeletedAbsent
		return out
	}
	for _, id := range ids {
		if err := s.index.Delete(ctx, id); err != nil {
			out.Action, out.Err = ActionFailed, err
			return out
		}
	}
	out.Action = ActionDeleted
	return out
}

// fileExtension returns the lowercased extension of name without the dot
func fileExtension(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}
