package searcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/index"
	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

// mockIndex returns a fixed result and counts calls
type mockIndex struct {
	mu     sync.Mutex
	result *storage.SearchResult
	err    error
	calls  int
	last   *types.SearchQuery

	// when set, Search signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (m *mockIndex) Search(ctx context.Context, q *types.SearchQuery) (*storage.SearchResult, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cp := *q
	m.last = &cp
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockLinks resolves links for every path except those in failing
type mockLinks struct {
	failing map[string]bool
}

func (m *mockLinks) TemporaryLink(ctx context.Context, path string) (string, error) {
	if m.failing[path] {
		return "", errors.New("link unavailable")
	}
	return "https://dl.example.com" + path, nil
}

func hitFor(id, path string) storage.Hit {
	return storage.Hit{
		Document: types.Document{ID: id, FileName: path[1:], FileType: "pdf", SourcePath: path},
		Score:    1.5,
	}
}

func newTestSearcher(result *storage.SearchResult) (*Searcher, *mockIndex) {
	idx := &mockIndex{result: result}
	return NewSearcher(idx, &mockLinks{}, Config{}), idx
}

func TestSearchValidation(t *testing.T) {
	s, idx := newTestSearcher(&storage.SearchResult{})

	tests := []struct {
		name  string
		query types.SearchQuery
	}{
		{"empty query", types.SearchQuery{Q: "  "}},
		{"negative page", types.SearchQuery{Q: "x", Page: -1}},
		{"limit too large", types.SearchQuery{Q: "x", Limit: 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), tt.query)
			assert.ErrorIs(t, err, types.ErrQueryValidation)
		})
	}
	assert.Zero(t, idx.callCount())
}

func TestSearchBuildsResponse(t *testing.T) {
	s, idx := newTestSearcher(&storage.SearchResult{
		Total: 25,
		Hits:  []storage.Hit{hitFor("1", "/a.pdf"), hitFor("2", "/b.pdf")},
	})

	resp, err := s.Search(context.Background(), types.SearchQuery{Q: "report", Page: 2})
	require.NoError(t, err)

	assert.Equal(t, 25, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 3, resp.TotalPages)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "/a.pdf", resp.Results[0].SourcePath)
	assert.Equal(t, "https://dl.example.com/a.pdf", resp.Results[0].URL)
	assert.Equal(t, 1.5, resp.Results[0].Score)

	require.NotNil(t, idx.last)
	assert.Equal(t, types.DefaultPageSize, idx.last.Limit)
	assert.Equal(t, 10, idx.last.Offset())
}

func TestSearchUsesCache(t *testing.T) {
	s, idx := newTestSearcher(&storage.SearchResult{Total: 1, Hits: []storage.Hit{hitFor("1", "/a.pdf")}})
	ctx := context.Background()

	_, err := s.Search(ctx, types.SearchQuery{Q: "report", FileTypes: []string{"pdf", "txt"}})
	require.NoError(t, err)

	resp, err := s.Search(ctx, types.SearchQuery{Q: " report ", FileTypes: []string{".TXT", "pdf"}})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit, "equivalent queries share a cache entry")
	assert.Equal(t, 1, idx.callCount())

	// Callers cannot modify the cached copy
	resp.Results[0].FileName = "changed"
	again, err := s.Search(ctx, types.SearchQuery{Q: "report", FileTypes: []string{"pdf", "txt"}})
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", again.Results[0].FileName)

	_, err = s.Search(ctx, types.SearchQuery{Q: "report", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.callCount(), "different pages are cached separately")
}

func TestSearchLinkFailureLeavesURLEmpty(t *testing.T) {
	idx := &mockIndex{result: &storage.SearchResult{
		Total: 2,
		Hits:  []storage.Hit{hitFor("1", "/a.pdf"), hitFor("2", "/b.pdf")},
	}}
	s := NewSearcher(idx, &mockLinks{failing: map[string]bool{"/b.pdf": true}}, Config{})

	resp, err := s.Search(context.Background(), types.SearchQuery{Q: "report"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results[0].URL)
	assert.Empty(t, resp.Results[1].URL)
}

func TestSearchWithoutLinkResolver(t *testing.T) {
	idx := &mockIndex{result: &storage.SearchResult{Total: 1, Hits: []storage.Hit{hitFor("1", "/a.pdf")}}}
	s := NewSearcher(idx, nil, Config{})

	resp, err := s.Search(context.Background(), types.SearchQuery{Q: "report"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results[0].URL)
}

func TestSearchIndexError(t *testing.T) {
	boom := errors.New("engine down")
	idx := &mockIndex{err: boom}
	s := NewSearcher(idx, nil, Config{})

	_, err := s.Search(context.Background(), types.SearchQuery{Q: "report"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, types.ErrQueryValidation)
	assert.Zero(t, s.CacheLen(), "failures are not cached")
}

func TestInvalidatePaths(t *testing.T) {
	ctx := context.Background()
	idx := &mockIndex{}
	s := NewSearcher(idx, nil, Config{})

	idx.result = &storage.SearchResult{Total: 1, Hits: []storage.Hit{hitFor("1", "/reports/q1.pdf")}}
	_, err := s.Search(ctx, types.SearchQuery{Q: "q1"})
	require.NoError(t, err)

	idx.result = &storage.SearchResult{Total: 1, Hits: []storage.Hit{hitFor("2", "/notes.pdf")}}
	_, err = s.Search(ctx, types.SearchQuery{Q: "notes"})
	require.NoError(t, err)
	require.Equal(t, 2, s.CacheLen())

	s.InvalidatePaths([]string{"/unrelated.pdf"})
	assert.Equal(t, 2, s.CacheLen())

	s.InvalidatePaths([]string{"/reports"})
	assert.Equal(t, 1, s.CacheLen(), "a folder path invalidates the files below it")

	s.InvalidatePaths([]string{"/notes.pdf"})
	assert.Zero(t, s.CacheLen())
}

func TestInvalidationDuringSearchIsNotCached(t *testing.T) {
	for _, tt := range []struct {
		name  string
		clear func(s *Searcher)
	}{
		{"invalidate", func(s *Searcher) { s.InvalidatePaths([]string{"/a.pdf"}) }},
		{"purge", func(s *Searcher) { s.Purge() }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, idx := newTestSearcher(&storage.SearchResult{Total: 1, Hits: []storage.Hit{hitFor("1", "/a.pdf")}})
			idx.entered = make(chan struct{})
			idx.release = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				_, err := s.Search(ctx, types.SearchQuery{Q: "a"})
				done <- err
			}()

			<-idx.entered
			tt.clear(s)
			close(idx.release)
			require.NoError(t, <-done)

			assert.Zero(t, s.CacheLen(), "a response read before the change is dropped")
			assert.Empty(t, s.cache.byPath)

			idx.entered = nil
			resp, err := s.Search(ctx, types.SearchQuery{Q: "a"})
			require.NoError(t, err)
			assert.False(t, resp.CacheHit)
			assert.Equal(t, 2, idx.callCount())
		})
	}
}

func TestPurge(t *testing.T) {
	s, _ := newTestSearcher(&storage.SearchResult{Total: 1, Hits: []storage.Hit{hitFor("1", "/a.pdf")}})
	_, err := s.Search(context.Background(), types.SearchQuery{Q: "a"})
	require.NoError(t, err)
	require.Equal(t, 1, s.CacheLen())

	s.Purge()
	assert.Zero(t, s.CacheLen())
	assert.Empty(t, s.cache.byPath)
}

func TestCacheExpires(t *testing.T) {
	idx := &mockIndex{result: &storage.SearchResult{}}
	s := NewSearcher(idx, nil, Config{CacheTTL: 20 * time.Millisecond})
	ctx := context.Background()

	_, err := s.Search(ctx, types.SearchQuery{Q: "a"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	resp, err := s.Search(ctx, types.SearchQuery{Q: "a"})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, idx.callCount())
}

func TestDeletionInvalidatesCachedResults(t *testing.T) {
	ctx := context.Background()
	engine, err := storage.NewSQLiteEngine(":memory:")
	require.NoError(t, err)
	defer engine.Close()

	idx := index.New(engine, index.Config{})
	require.NoError(t, idx.EnsureSchema(ctx))
	now := time.Now().UTC()
	require.NoError(t, idx.Upsert(ctx, &types.Document{
		ID: "doc-1", FileName: "a.txt", FileType: "txt", FileSize: 5,
		Content: "quarterly budget", CreatedAt: now, ModifiedAt: now, SourcePath: "/a.txt",
	}))

	s := NewSearcher(idx, nil, Config{})
	resp, err := s.Search(ctx, types.SearchQuery{Q: "budget"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)

	require.NoError(t, idx.Delete(ctx, "doc-1"))
	resp, err = s.Search(ctx, types.SearchQuery{Q: "budget"})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit, "stale until invalidated")

	s.InvalidatePaths([]string{"/a.txt"})
	resp, err = s.Search(ctx, types.SearchQuery{Q: "budget"})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Results)
}
