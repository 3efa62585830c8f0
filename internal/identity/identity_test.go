package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID(t *testing.T) {
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sum := sha256.Sum256([]byte("/a.pdf:1704067200000"))
	assert.Equal(t, hex.EncodeToString(sum[:]), DocumentID("/a.pdf", modified))

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, DocumentID("/a.pdf", modified), DocumentID("/a.pdf", modified.In(time.FixedZone("x", 3600))))
	})

	t.Run("changes with version", func(t *testing.T) {
		assert.NotEqual(t, DocumentID("/a.pdf", modified), DocumentID("/a.pdf", modified.Add(time.Millisecond)))
		assert.NotEqual(t, DocumentID("/a.pdf", modified), DocumentID("/b.pdf", modified))
	})

	t.Run("sub-millisecond precision ignored", func(t *testing.T) {
		assert.Equal(t, DocumentID("/a.pdf", modified), DocumentID("/a.pdf", modified.Add(500*time.Microsecond)))
	})
}

func TestFreshnessCache(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("miss does not skip", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		assert.False(t, c.ShouldSkip("id:1", "/f.txt", base))
	})

	t.Run("same or older version skips", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		c.Record("id:1", "/f.txt", base)
		assert.True(t, c.ShouldSkip("id:1", "/f.txt", base))
		assert.True(t, c.ShouldSkip("id:1", "/f.txt", base.Add(-time.Minute)))
		assert.False(t, c.ShouldSkip("id:1", "/f.txt", base.Add(time.Second)))
	})

	t.Run("older record never replaces newer", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		c.Record("id:1", "/f.txt", base.Add(time.Hour))
		c.Record("id:1", "/f.txt", base)
		assert.True(t, c.ShouldSkip("id:1", "/f.txt", base.Add(time.Hour)))
	})

	t.Run("empty content id is ignored", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		c.Record("", "/f.txt", base)
		assert.Equal(t, 0, c.Len())
		assert.False(t, c.ShouldSkip("", "/f.txt", base))
	})

	t.Run("forget", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		c.Record("id:1", "/f.txt", base)
		c.Forget("id:1")
		assert.False(t, c.ShouldSkip("id:1", "/f.txt", base))
	})

	t.Run("expires after ttl", func(t *testing.T) {
		c := NewFreshnessCache(10, 20*time.Millisecond)
		c.Record("id:1", "/f.txt", base)
		require.True(t, c.ShouldSkip("id:1", "/f.txt", base))
		assert.Eventually(t, func() bool { return !c.ShouldSkip("id:1", "/f.txt", base) }, time.Second, 10*time.Millisecond)
	})

	t.Run("bounded by size", func(t *testing.T) {
		c := NewFreshnessCache(2, time.Hour)
		c.Record("a", "/f.txt", base)
		c.Record("b", "/f.txt", base)
		c.Record("c", "/f.txt", base)
		assert.Equal(t, 2, c.Len())
		assert.False(t, c.ShouldSkip("a", "/f.txt", base))
	})

	t.Run("moved file is not skipped", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		c.Record("id:1", "/a.txt", base)
		assert.True(t, c.ShouldSkip("id:1", "/a.txt", base))
		assert.False(t, c.ShouldSkip("id:1", "/docs/a.txt", base))

		// Indexing at the new path replaces the record even at the same version
		c.Record("id:1", "/docs/a.txt", base)
		assert.True(t, c.ShouldSkip("id:1", "/docs/a.txt", base))
		assert.False(t, c.ShouldSkip("id:1", "/a.txt", base))
	})

	t.Run("forget by path and folder", func(t *testing.T) {
		c := NewFreshnessCache(10, time.Hour)
		c.Record("id:1", "/docs/a.txt", base)
		c.Record("id:2", "/docs/sub/b.txt", base)
		c.Record("id:3", "/docs-old/c.txt", base)
		c.Record("id:4", "/e.txt", base)

		assert.Equal(t, 1, c.ForgetPath("/e.txt"))
		assert.False(t, c.ShouldSkip("id:4", "/e.txt", base))

		assert.Equal(t, 2, c.ForgetPath("/docs"))
		assert.False(t, c.ShouldSkip("id:1", "/docs/a.txt", base))
		assert.False(t, c.ShouldSkip("id:2", "/docs/sub/b.txt", base))
		assert.True(t, c.ShouldSkip("id:3", "/docs-old/c.txt", base))
		assert.Zero(t, c.ForgetPath("/missing"))
	})
}
