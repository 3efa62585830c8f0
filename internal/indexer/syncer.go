package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/dropsearch/internal/extractor"
	"github.com/dshills/dropsearch/internal/identity"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/metrics"
	"github.com/dshills/dropsearch/internal/source"
	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

// ErrSyncInProgress is returned when a full sync is already running
var ErrSyncInProgress = errors.New("full sync already in progress")

// Default settings
const (
	DefaultBatchSize   = 3
	DefaultMaxFileSize = 50 * 1024 * 1024
	DefaultPollBackoff = 5 * time.Second
)

// DefaultExtensions are the file types indexed by default
var DefaultExtensions = []string{".txt", ".pdf", ".docx"}

// ChangeSource is the remote file store's change feed
type ChangeSource interface {
	ListAll(ctx context.Context, root string) ([]source.Entry, error)
	GetLatestCursor(ctx context.Context, root string) (source.Cursor, error)
	PollForChanges(ctx context.Context, cursor source.Cursor) (source.Signal, error)
	ContinueFromCursor(ctx context.Context, cursor source.Cursor) ([]source.Entry, source.Cursor, error)
	Download(ctx context.Context, path string) ([]byte, error)
}

// DocumentIndex is the index the syncer writes to
type DocumentIndex interface {
	Upsert(ctx context.Context, doc *types.Document) error
	Delete(ctx context.Context, id string) error
	FindBySourcePath(ctx context.Context, path string) (string, bool, error)
	FindUnderPath(ctx context.Context, path string) ([]string, error)
	ListSourceRefs(ctx context.Context) ([]storage.SourceRef, error)
	Count(ctx context.Context) (int, error)
}

// ContentExtractor turns a remote file into text
type ContentExtractor interface {
	Extract(ctx context.Context, meta extractor.Metadata, fetch extractor.FetchFunc) (string, error)
}

// CacheInvalidator drops cached search responses
type CacheInvalidator interface {
	InvalidatePaths(paths []string)
	Purge()
}

// Deps are the collaborators of a Syncer
type Deps struct {
	Source    ChangeSource
	Index     DocumentIndex
	Extractor ContentExtractor
	Freshness *identity.FreshnessCache
	Cache     CacheInvalidator // optional
}

// Config contains configuration for the syncer
type Config struct {
	Root        string        // folder to mirror, "" for the whole account
	BatchSize   int           // files processed concurrently (default: 3)
	MaxFileSize int64         // larger files are skipped (default: 50MB)
	Extensions  []string      // supported extensions with leading dot
	PollBackoff time.Duration // wait after a failed poll (default: 5s)
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if len(c.Extensions) == 0 {
		c.Extensions = DefaultExtensions
	}
	if c.PollBackoff <= 0 {
		c.PollBackoff = DefaultPollBackoff
	}
	return c
}

// Status is a snapshot of the syncer state
type Status struct {
	Running         bool        `json:"running"`
	HasCursor       bool        `json:"hasCursor"`
	LastFull        *Statistics `json:"lastFull,omitempty"`
	LastIncremental *Statistics `json:"lastIncremental,omitempty"`
}

// Syncer mirrors a remote folder into the document index
type Syncer struct {
	source    ChangeSource
	index     DocumentIndex
	extractor ContentExtractor
	freshness *identity.FreshnessCache
	cache     CacheInvalidator
	cfg       Config

	extensions map[string]struct{}

	// cursorMu serializes read-continue-replace of the change cursor
	cursorMu  sync.Mutex
	cursor    source.Cursor
	hasCursor atomic.Bool

	fullLock IndexLock
	running  atomic.Int32

	// written holds paths upserted while a full listing is in flight.
	// Prune never deletes them: the listing may predate the write.
	writtenMu sync.Mutex
	written   map[string]struct{}

	notify   chan struct{}

	statusMu        sync.Mutex
	lastFull        *Statistics
	lastIncremental *Statistics
}

// New creates a Syncer
func New(deps Deps, cfg Config) *Syncer {
	cfg = cfg.withDefaults()
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &Syncer{
		source:     deps.Source,
		index:      deps.Index,
		extractor:  deps.Extractor,
		freshness:  deps.Freshness,
		cache:      deps.Cache,
		cfg:        cfg,
		extensions: exts,
		notify:     make(chan struct{}, 1),
	}
}

// RunFullSync indexes every file under the root folder and prunes documents
// whose files are gone. The change cursor is acquired first so edits made
// during the listing are seen by the next incremental run.
func (s *Syncer) RunFullSync(ctx context.Context) (*Statistics, error) {
	if !s.fullLock.TryAcquire() {
		return nil, ErrSyncInProgress
	}
	defer s.fullLock.Release()

	s.cursorMu.Lock()
	_, err := s.ensureCursorLocked(ctx)
	s.cursorMu.Unlock()
	if err != nil {
		metrics.RecordSyncRun(string(ModeFull), 0, false)
		return nil, err
	}

	return s.fullSync(ctx, ModeFull)
}

// fullSync lists and processes everything. Callers hold fullLock.
func (s *Syncer) fullSync(ctx context.Context, mode Mode) (*Statistics, error) {
	s.running.Add(1)
	defer s.running.Add(-1)

	stats := newStatistics(mode)
	s.trackWrites(true)
	defer s.trackWrites(false)

	entries, err := s.source.ListAll(ctx, s.cfg.Root)
	if err != nil {
		metrics.RecordSyncRun(string(mode), time.Since(stats.StartedAt), false)
		return nil, fmt.Errorf("list %q: %w", s.cfg.Root, err)
	}
	stats.Entries = len(entries)

	logging.Info("full sync started",
		logging.String("root", s.cfg.Root),
		logging.Int("entries", len(entries)))

	if err := s.processEntries(ctx, entries, stats, false); err != nil {
		s.finish(stats, false)
		return stats, err
	}
	s.prune(ctx, entries, stats)

	if s.cache != nil && stats.Changed() {
		s.cache.Purge()
	}
	s.finish(stats, true)
	return stats, nil
}

// RunIncrementalSync applies every change since the last cursor. A reset
// cursor is replaced and the run falls back to a full sync.
func (s *Syncer) RunIncrementalSync(ctx context.Context) (*Statistics, error) {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()

	s.running.Add(1)
	defer s.running.Add(-1)

	stats := newStatistics(ModeIncremental)

	if s.cursor == "" {
		// Nothing can be replayed without a cursor; the new one marks "now"
		if _, err := s.ensureCursorLocked(ctx); err != nil {
			metrics.RecordSyncRun(string(ModeIncremental), time.Since(stats.StartedAt), false)
			return nil, err
		}
		s.finish(stats, true)
		return stats, nil
	}

	entries, next, err := s.source.ContinueFromCursor(ctx, s.cursor)
	if errors.Is(err, source.ErrCursorReset) {
		return s.fallBackToFull(ctx, stats)
	}
	if err != nil {
		metrics.RecordSyncRun(string(ModeIncremental), time.Since(stats.StartedAt), false)
		return nil, err
	}
	s.setCursor(next)

	entries = dedupeByPath(entries)
	stats.Entries = len(entries)
	if len(entries) > 0 {
		logging.Info("incremental sync started", logging.Int("entries", len(entries)))
	}

	if err := s.processEntries(ctx, entries, stats, true); err != nil {
		s.finish(stats, false)
		return stats, err
	}

	// New documents can enter any cached result
	if s.cache != nil && stats.Counts[ActionIndexed] > 0 {
		s.cache.Purge()
	}
	s.finish(stats, true)
	return stats, nil
}

// fallBackToFull replaces a reset cursor and reindexes. Callers hold cursorMu.
func (s *Syncer) fallBackToFull(ctx context.Context, stats *Statistics) (*Statistics, error) {
	logging.Warn("change cursor reset, falling back to full sync")
	s.setCursor("")
	if _, err := s.ensureCursorLocked(ctx); err != nil {
		metrics.RecordSyncRun(string(ModeIncremental), time.Since(stats.StartedAt), false)
		return nil, err
	}

	stats.FellBack = true
	if !s.fullLock.TryAcquire() {
		// The running full sync covers the gap
		s.finish(stats, true)
		return stats, nil
	}
	defer s.fullLock.Release()

	full, err := s.fullSync(ctx, ModeFull)
	if full != nil {
		stats.merge(full)
	}
	if err != nil {
		s.finish(stats, false)
		return stats, err
	}
	s.finish(stats, true)
	return stats, nil
}

// ensureCursorLocked acquires a cursor if none is held. Callers hold cursorMu.
func (s *Syncer) ensureCursorLocked(ctx context.Context) (source.Cursor, error) {
	if s.cursor != "" {
		return s.cursor, nil
	}
	cursor, err := s.source.GetLatestCursor(ctx, s.cfg.Root)
	if err != nil {
		return "", fmt.Errorf("acquire cursor: %w", err)
	}
	s.setCursor(cursor)
	return cursor, nil
}

func (s *Syncer) ensureCursor(ctx context.Context) (source.Cursor, error) {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	return s.ensureCursorLocked(ctx)
}

func (s *Syncer) setCursor(c source.Cursor) {
	s.cursor = c
	s.hasCursor.Store(c != "")
}

// prune deletes documents whose source path is no longer listed
func (s *Syncer) prune(ctx context.Context, entries []source.Entry, stats *Statistics) {
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if f, ok := e.(source.File); ok {
			present[f.Path] = struct{}{}
		}
	}

	refs, err := s.index.ListSourceRefs(ctx)
	if err != nil {
		logging.Warn("failed to list indexed documents for pruning", logging.Err(err))
		return
	}
	for _, ref := range refs {
		if _, ok := present[ref.SourcePath]; ok {
			continue
		}
		if s.wasWritten(ref.SourcePath) {
			continue
		}
		o := Outcome{Path: ref.SourcePath, Action: ActionPruned, DocumentID: ref.ID}
		if err := s.index.Delete(ctx, ref.ID); err != nil {
			o.Action, o.Err = ActionFailed, err
		}
		s.forget(ref.SourcePath)
		s.record(stats, o)
	}
}

// trackWrites starts or stops recording upserted paths for prune
func (s *Syncer) trackWrites(on bool) {
	s.writtenMu.Lock()
	defer s.writtenMu.Unlock()
	if on {
		s.written = make(map[string]struct{})
	} else {
		s.written = nil
	}
}

// markWritten is called before an upsert so a prune that can see the
// document also sees the mark
func (s *Syncer) markWritten(path string) {
	s.writtenMu.Lock()
	defer s.writtenMu.Unlock()
	if s.written != nil {
		s.written[path] = struct{}{}
	}
}

func (s *Syncer) wasWritten(path string) bool {
	s.writtenMu.Lock()
	defer s.writtenMu.Unlock()
	_, ok := s.written[path]
	return ok
}

func (s *Syncer) record(stats *Statistics, o Outcome) {
	stats.add(o)
	metrics.RecordFileOutcome(string(o.Action))
	if o.Err != nil {
		logging.Warn("file failed",
			logging.String("path", o.Path),
			logging.String("action", string(o.Action)),
			logging.Err(o.Err))
	}
}

func (s *Syncer) finish(stats *Statistics, ok bool) {
	stats.Duration = time.Since(stats.StartedAt)
	metrics.RecordSyncRun(string(stats.Mode), stats.Duration, ok)

	if n, err := s.index.Count(context.Background()); err == nil {
		metrics.SetIndexDocuments(n)
	}

	s.statusMu.Lock()
	if stats.Mode == ModeFull {
		s.lastFull = stats.Clone()
	} else {
		s.lastIncremental = stats.Clone()
	}
	s.statusMu.Unlock()

	if stats.Entries > 0 || stats.FellBack {
		logging.Info("sync completed",
			logging.String("mode", string(stats.Mode)),
			logging.Int("entries", stats.Entries),
			logging.Int("indexed", stats.Counts[ActionIndexed]),
			logging.Int("deleted", stats.Counts[ActionDeleted]+stats.Counts[ActionPruned]),
			logging.Int("failed", stats.Counts[ActionFailed]),
			logging.Duration("duration", stats.Duration))
	}
}

// Status returns a snapshot of the syncer state
func (s *Syncer) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return Status{
		Running:         s.running.Load() > 0,
		HasCursor:       s.hasCursor.Load(),
		LastFull:        s.lastFull.Clone(),
		LastIncremental: s.lastIncremental.Clone(),
	}
}

// dedupeByPath keeps the last entry for each path, in delta order
func dedupeByPath(entries []source.Entry) []source.Entry {
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.EntryPath()] = i
	}
	out := make([]source.Entry, 0, len(last))
	for i, e := range entries {
		if last[e.EntryPath()] == i {
			out = append(out, e)
		}
	}
	return out
}
