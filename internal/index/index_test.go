package index

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

func newTestIndex(t *testing.T) (*Index, storage.Engine) {
	t.Helper()
	engine, err := storage.NewSQLiteEngine(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	ix := New(engine, Config{})
	require.NoError(t, ix.EnsureSchema(context.Background()))
	return ix, engine
}

func testDoc(id, path string, modified time.Time) *types.Document {
	return &types.Document{
		ID:         id,
		FileName:   path[1:],
		FileType:   "txt",
		FileSize:   4,
		Content:    "text",
		CreatedAt:  modified,
		ModifiedAt: modified,
		SourcePath: path,
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	ix, engine := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.EnsureSchema(ctx))

	p, err := engine.GetPipeline(ctx, DefaultPipelineName)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultPipelineField, p.Field)
	assert.Equal(t, -1, p.IndexedChars)
	assert.Equal(t, DefaultName, ix.Name())
}

func TestFindBySourcePath(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	_, found, err := ix.FindBySourcePath(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ix.Upsert(ctx, testDoc("id-a", "/a.txt", time.Now())))
	id, found, err := ix.FindBySourcePath(ctx, "/a.txt")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "id-a", id)
}

func TestFindUnderPathMatchesFolderContents(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, ix.Upsert(ctx, testDoc("1", "/reports/q1.txt", now)))
	require.NoError(t, ix.Upsert(ctx, testDoc("2", "/reports-2023/q1.txt", now)))

	ids, err := ix.FindUnderPath(ctx, "/reports")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}

func TestUpsertWrapsWriteErrors(t *testing.T) {
	engine, err := storage.NewSQLiteEngine(":memory:")
	require.NoError(t, err)
	defer engine.Close()

	ix := New(engine, Config{Name: "never-created"})
	err = ix.Upsert(context.Background(), testDoc("1", "/a.txt", time.Now()))
	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestIngestRemovesStagedCopy(t *testing.T) {
	ix, engine := newTestIndex(t)
	ctx := context.Background()

	att, err := ix.Ingest(ctx, base64.StdEncoding.EncodeToString([]byte("hello world")))
	require.NoError(t, err)
	assert.Equal(t, "hello world", att.Content)

	n, err := engine.Count(ctx, DefaultName)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIngestUnsupportedContent(t *testing.T) {
	ix, _ := newTestIndex(t)
	_, err := ix.Ingest(context.Background(), base64.StdEncoding.EncodeToString([]byte{0x00, 0x01, 0x02, 0x00, 0xff}))
	assert.Error(t, err)
}
