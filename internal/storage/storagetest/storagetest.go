// Package storagetest provides a conformance suite for storage.Engine implementations.
package storagetest

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

const (
	testIndex    = "documents"
	stagingIndex = "documents-staging"
	pipelineName = "attachment"
)

// Factory creates a fresh, empty engine
type Factory func(t *testing.T) storage.Engine

// Run exercises the Engine contract against engines built by newEngine
func Run(t *testing.T, newEngine Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, e storage.Engine)
	}{
		{"EnsureIndexIsIdempotent", testEnsureIndex},
		{"UpsertAndGet", testUpsertAndGet},
		{"UpsertIsIdempotent", testUpsertIdempotent},
		{"ConcurrentUpserts", testConcurrentUpserts},
		{"NewVersionReplacesOld", testNewVersionReplacesOld},
		{"StaleVersionIsDropped", testStaleVersionDropped},
		{"Delete", testDelete},
		{"FindUnderPath", testFindUnderPath},
		{"ListSourceRefs", testListSourceRefs},
		{"SearchRanksFileNameHigher", testSearchRanking},
		{"SearchFilters", testSearchFilters},
		{"SearchPagination", testSearchPagination},
		{"SearchHighlights", testSearchHighlights},
		{"Ingest", testIngest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			t.Cleanup(func() { _ = e.Close() })
			require.NoError(t, e.EnsureIndex(context.Background(), testIndex))
			tt.fn(t, e)
		})
	}
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Doc builds a test document
func Doc(id, path, content string, size int64, created time.Time) *types.Document {
	name := path[strings.LastIndex(path, "/")+1:]
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	return &types.Document{
		ID:         id,
		FileName:   name,
		FileType:   ext,
		FileSize:   size,
		Content:    content,
		CreatedAt:  created,
		ModifiedAt: created,
		SourcePath: path,
	}
}

func testEnsureIndex(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.EnsureIndex(ctx, testIndex))

	err := e.Upsert(ctx, "missing", Doc("1", "/a.txt", "x", 1, base))
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func testUpsertAndGet(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	doc := Doc("doc-1", "/reports/a.pdf", "quarterly report", 2048, base)
	require.NoError(t, e.Upsert(ctx, testIndex, doc))

	exists, err := e.Exists(ctx, testIndex, "doc-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = e.Exists(ctx, testIndex, "doc-2")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := e.Get(ctx, testIndex, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.FileName)
	assert.Equal(t, "pdf", got.FileType)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, "quarterly report", got.Content)
	assert.Equal(t, "/reports/a.pdf", got.SourcePath)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.True(t, base.Equal(got.ModifiedAt))

	_, err = e.Get(ctx, testIndex, "doc-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ids, err := e.FindBySourcePath(ctx, testIndex, "/reports/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, ids)
}

func testUpsertIdempotent(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	doc := Doc("doc-1", "/a.txt", "hello", 5, base)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Upsert(ctx, testIndex, doc))
	}
	n, err := e.Count(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentUpserts(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	doc := Doc("doc-1", "/a.txt", "hello", 5, base)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.Upsert(ctx, testIndex, doc)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := e.Count(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testNewVersionReplacesOld(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	v1 := Doc("v1", "/a.txt", "first draft", 5, base)
	v2 := Doc("v2", "/a.txt", "second draft", 6, base)
	v2.ModifiedAt = base.Add(time.Hour)

	require.NoError(t, e.Upsert(ctx, testIndex, v1))
	require.NoError(t, e.Upsert(ctx, testIndex, v2))

	ids, err := e.FindBySourcePath(ctx, testIndex, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, ids)

	exists, err := e.Exists(ctx, testIndex, "v1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testStaleVersionDropped(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	newer := Doc("v2", "/a.txt", "second draft", 6, base)
	newer.ModifiedAt = base.Add(time.Hour)
	older := Doc("v1", "/a.txt", "first draft", 5, base)

	require.NoError(t, e.Upsert(ctx, testIndex, newer))
	require.NoError(t, e.Upsert(ctx, testIndex, older))

	ids, err := e.FindBySourcePath(ctx, testIndex, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, ids)
}

func testDelete(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("doc-1", "/a.txt", "hello", 5, base)))

	require.NoError(t, e.Delete(ctx, testIndex, "doc-1"))
	require.NoError(t, e.Delete(ctx, testIndex, "doc-1"), "deleting an absent id is not an error")

	ids, err := e.FindBySourcePath(ctx, testIndex, "/a.txt")
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := e.Count(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testFindUnderPath(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("1", "/docs/a.txt", "a", 1, base)))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("2", "/docs/sub/b.txt", "b", 1, base)))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("3", "/docs-old/c.txt", "c", 1, base)))

	ids, err := e.FindUnderPath(ctx, testIndex, "/docs/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func testListSourceRefs(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("1", "/a.txt", "a", 1, base)))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("2", "/b.txt", "b", 1, base)))

	refs, err := e.ListSourceRefs(ctx, testIndex)
	require.NoError(t, err)
	assert.ElementsMatch(t, []storage.SourceRef{{ID: "1", SourcePath: "/a.txt"}, {ID: "2", SourcePath: "/b.txt"}}, refs)
}

func testSearchRanking(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("name", "/budget.txt", "numbers and tables", 10, base)))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("body", "/notes.txt", "the budget is over", 10, base)))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("other", "/other.txt", "unrelated words", 10, base)))

	q := &types.SearchQuery{Q: "budget"}
	require.NoError(t, q.Normalize())
	res, err := e.Search(ctx, testIndex, q)
	require.NoError(t, err)

	require.Equal(t, 2, res.Total)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "name", res.Hits[0].Document.ID)
	assert.Equal(t, "body", res.Hits[1].Document.ID)
	assert.Empty(t, res.Hits[0].Document.Content)
}

func seedFilterDocs(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	mb := int64(1024 * 1024)
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("a", "/a.pdf", "quarterly report", 1*mb, base)))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("b", "/b.txt", "quarterly notes", 10, base.AddDate(0, 2, 0))))
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("c", "/c.pdf", "quarterly summary", 10*mb, base.AddDate(0, 5, 0))))
}

func hitIDs(res *storage.SearchResult) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.Document.ID
	}
	return ids
}

func testSearchFilters(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	seedFilterDocs(t, e)

	maxSize := int64(5 * 1024 * 1024)
	start := base.AddDate(0, 1, 0)
	end := base.AddDate(0, 3, 0)

	tests := []struct {
		name  string
		query types.SearchQuery
		want  []string
	}{
		{"no filters", types.SearchQuery{Q: "quarterly"}, []string{"a", "b", "c"}},
		{"file type", types.SearchQuery{Q: "quarterly", FileTypes: []string{"pdf"}}, []string{"a", "c"}},
		{"type and size", types.SearchQuery{Q: "quarterly", FileTypes: []string{"pdf"}, MaxSize: &maxSize}, []string{"a"}},
		{"date from", types.SearchQuery{Q: "quarterly", DateRange: types.DateRange{Start: &start}}, []string{"b", "c"}},
		{"date window", types.SearchQuery{Q: "quarterly", DateRange: types.DateRange{Start: &start, End: &end}}, []string{"b"}},
		{"no match", types.SearchQuery{Q: "quarterly", FileTypes: []string{"docx"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			require.NoError(t, q.Normalize())
			res, err := e.Search(ctx, testIndex, &q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), res.Total)
			assert.ElementsMatch(t, tt.want, hitIDs(res))
		})
	}
}

func testSearchPagination(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	seedFilterDocs(t, e)

	q := &types.SearchQuery{Q: "quarterly", Page: 2, Limit: 2}
	require.NoError(t, q.Normalize())
	res, err := e.Search(ctx, testIndex, q)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Hits, 1)

	q = &types.SearchQuery{Q: "quarterly", Page: 3, Limit: 2}
	require.NoError(t, q.Normalize())
	res, err = e.Search(ctx, testIndex, q)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Empty(t, res.Hits)
}

func testSearchHighlights(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Upsert(ctx, testIndex, Doc("1", "/notes.txt", "the budget is over by a wide margin", 10, base)))

	q := &types.SearchQuery{Q: "budget"}
	require.NoError(t, q.Normalize())
	res, err := e.Search(ctx, testIndex, q)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.NotEmpty(t, res.Hits[0].Highlights)
	assert.Contains(t, strings.ToLower(res.Hits[0].Highlights[0]), "budget")
}

func testIngest(t *testing.T, e storage.Engine) {
	ctx := context.Background()
	require.NoError(t, e.EnsureIndex(ctx, stagingIndex))
	data := base64.StdEncoding.EncodeToString([]byte("plain text body"))

	_, err := e.Ingest(ctx, stagingIndex, pipelineName, data)
	assert.ErrorIs(t, err, storage.ErrPipelineNotFound)

	require.NoError(t, e.EnsurePipeline(ctx, storage.NewAttachmentPipeline(pipelineName, -1)))
	require.NoError(t, e.EnsurePipeline(ctx, storage.NewAttachmentPipeline(pipelineName, -1)))

	p, err := e.GetPipeline(ctx, pipelineName)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultPipelineField, p.Field)
	assert.Equal(t, -1, p.IndexedChars)

	id, err := e.Ingest(ctx, stagingIndex, pipelineName, data)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	att, err := e.GetStaged(ctx, stagingIndex, id)
	require.NoError(t, err)
	assert.Equal(t, "plain text body", att.Content)
	assert.Equal(t, len("plain text body"), att.ContentLength)

	require.NoError(t, e.DeleteStaged(ctx, stagingIndex, id))
	_, err = e.GetStaged(ctx, stagingIndex, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	script := base64.StdEncoding.EncodeToString([]byte("#!/bin/sh\necho hello\n"))
	id, err = e.Ingest(ctx, stagingIndex, pipelineName, script)
	require.NoError(t, err)
	att, err = e.GetStaged(ctx, stagingIndex, id)
	require.NoError(t, err)
	assert.Equal(t, "Shell", att.Language)

	// Empty files are staged as empty text
	id, err = e.Ingest(ctx, stagingIndex, pipelineName, "")
	require.NoError(t, err)
	att, err = e.GetStaged(ctx, stagingIndex, id)
	require.NoError(t, err)
	assert.Empty(t, att.Content)
	assert.Zero(t, att.ContentLength)

	_, err = e.Ingest(ctx, stagingIndex, pipelineName, "not base64!")
	assert.Error(t, err)

	n, err := e.Count(ctx, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 0, n, fmt.Sprintf("staging must not leak into %s", testIndex))
}
