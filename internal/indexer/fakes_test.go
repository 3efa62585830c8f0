package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/extractor"
	"github.com/dshills/dropsearch/internal/identity"
	"github.com/dshills/dropsearch/internal/index"
	"github.com/dshills/dropsearch/internal/source"
	"github.com/dshills/dropsearch/internal/storage"
)

// fakeSource is an in-memory change feed with call counters
type fakeSource struct {
	mu          sync.Mutex
	listing     []source.Entry
	listErr     error
	content     map[string]string
	downloadErr map[string]error
	deltas      [][]source.Entry
	continueErr error
	cursorErr   error
	polls       chan source.Signal
	pollErr     error
	pollErrOnce error
	cursorSeq   int
	calls       map[string]int
	downloads   map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		content:     make(map[string]string),
		downloadErr: make(map[string]error),
		polls:       make(chan source.Signal, 10),
		calls:       make(map[string]int),
		downloads:   make(map[string]int),
	}
}

// addFile lists a text file and serves its content
func (f *fakeSource) addFile(path, body string, modified time.Time) source.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	file := textFile(path, body, modified)
	f.listing = append(f.listing, file)
	f.content[path] = body
	return file
}

func (f *fakeSource) setListing(entries ...source.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listing = entries
}

func (f *fakeSource) pushDelta(entries ...source.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, entries)
}

func (f *fakeSource) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeSource) downloadCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[path]
}

func (f *fakeSource) totalDownloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.downloads {
		n += c
	}
	return n
}

func (f *fakeSource) ListAll(ctx context.Context, root string) ([]source.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]source.Entry(nil), f.listing...), nil
}

func (f *fakeSource) GetLatestCursor(ctx context.Context, root string) (source.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["latest"]++
	if f.cursorErr != nil {
		return "", f.cursorErr
	}
	f.cursorSeq++
	return source.Cursor(fmt.Sprintf("cursor-%d", f.cursorSeq)), nil
}

func (f *fakeSource) PollForChanges(ctx context.Context, cursor source.Cursor) (source.Signal, error) {
	f.mu.Lock()
	f.calls["poll"]++
	err := f.pollErr
	if f.pollErrOnce != nil {
		err, f.pollErrOnce = f.pollErrOnce, nil
	}
	f.mu.Unlock()
	if err != nil {
		return source.Signal{}, err
	}
	select {
	case <-ctx.Done():
		return source.Signal{}, ctx.Err()
	case sig := <-f.polls:
		return sig, nil
	}
}

func (f *fakeSource) ContinueFromCursor(ctx context.Context, cursor source.Cursor) ([]source.Entry, source.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["continue"]++
	if f.continueErr != nil {
		err := f.continueErr
		f.continueErr = nil
		return nil, "", err
	}
	var entries []source.Entry
	if len(f.deltas) > 0 {
		entries = f.deltas[0]
		f.deltas = f.deltas[1:]
	}
	f.cursorSeq++
	return entries, source.Cursor(fmt.Sprintf("cursor-%d", f.cursorSeq)), nil
}

func (f *fakeSource) Download(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads[path]++
	if err := f.downloadErr[path]; err != nil {
		return nil, err
	}
	body, ok := f.content[path]
	if !ok {
		return nil, fmt.Errorf("no content for %s", path)
	}
	return []byte(body), nil
}

// fakeCache records invalidations
type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
	purges      int
}

func (c *fakeCache) InvalidatePaths(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, paths...)
}

func (c *fakeCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purges++
}

func (c *fakeCache) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...), c.purges
}

func textFile(path, body string, modified time.Time) source.File {
	return source.File{
		Path:        path,
		DisplayPath: path,
		Name:        baseName(path),
		ContentID:   "id:" + path,
		SizeBytes:   int64(len(body)),
		CreatedAt:   modified,
		ModifiedAt:  modified,
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

type harness struct {
	source    *fakeSource
	index     *index.Index
	cache     *fakeCache
	freshness *identity.FreshnessCache
	syncer    *Syncer
}

func newHarness(t *testing.T, cfg Config, withFreshness bool) *harness {
	t.Helper()
	engine, err := storage.NewSQLiteEngine(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	idx := index.New(engine, index.Config{})
	require.NoError(t, idx.EnsureSchema(context.Background()))

	h := &harness{
		source: newFakeSource(),
		index:  idx,
		cache:  &fakeCache{},
	}
	if withFreshness {
		h.freshness = identity.NewFreshnessCache(100, time.Hour)
	}
	h.syncer = New(Deps{
		Source:    h.source,
		Index:     idx,
		Extractor: extractor.New(idx),
		Freshness: h.freshness,
		Cache:     h.cache,
	}, cfg)
	return h
}

// hookedSource runs beforeList once, after the listing snapshot is taken
type hookedSource struct {
	*fakeSource
	beforeList func()
}

func (h *hookedSource) ListAll(ctx context.Context, root string) ([]source.Entry, error) {
	entries, err := h.fakeSource.ListAll(ctx, root)
	if h.beforeList != nil {
		fn := h.beforeList
		h.beforeList = nil
		fn()
	}
	return entries, err
}

// useSource rebuilds the harness syncer over src
func (h *harness) useSource(src ChangeSource, cfg Config) {
	h.syncer = New(Deps{
		Source:    src,
		Index:     h.index,
		Extractor: extractor.New(h.index),
		Freshness: h.freshness,
		Cache:     h.cache,
	}, cfg)
}
