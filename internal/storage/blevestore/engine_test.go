package blevestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/internal/storage/storagetest"
)

func TestEngineConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		e, err := New("")
		require.NoError(t, err)
		return e
	})
}

func TestEngineOnDisk(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		e, err := New(t.TempDir())
		require.NoError(t, err)
		return e
	})
}

func TestEngineReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, e.EnsureIndex(ctx, "documents"))
	require.NoError(t, e.EnsurePipeline(ctx, storage.NewAttachmentPipeline("attachment", 100)))
	modified := time.Date(2024, 5, 1, 12, 30, 15, 0, time.UTC)
	require.NoError(t, e.Upsert(ctx, "documents", storagetest.Doc("1", "/a.txt", "hello there", 11, modified)))
	require.NoError(t, e.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Get(ctx, "documents", "1")
	assert.ErrorIs(t, err, storage.ErrIndexNotFound, "indices are registered by EnsureIndex")

	require.NoError(t, reopened.EnsureIndex(ctx, "documents"))
	doc, err := reopened.Get(ctx, "documents", "1")
	require.NoError(t, err)
	assert.Equal(t, "hello there", doc.Content)
	assert.True(t, modified.Equal(doc.ModifiedAt))

	p, err := reopened.GetPipeline(ctx, "attachment")
	require.NoError(t, err)
	assert.Equal(t, 100, p.IndexedChars)
}
