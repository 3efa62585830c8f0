package identity

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// freshnessRecord is the newest processed version of a file and the path it
// was indexed under
type freshnessRecord struct {
	path   string
	millis int64
}

// FreshnessCache remembers, per content id, the newest modification time that
// was processed and the path it was indexed at. Entries expire after the TTL
// and the cache is size bounded, so a miss only costs an identity lookup in
// the index.
type FreshnessCache struct {
	entries *expirable.LRU[string, freshnessRecord]
}

// NewFreshnessCache creates a cache holding at most size entries for ttl.
// A size <= 0 means unbounded; a ttl <= 0 means entries never expire.
func NewFreshnessCache(size int, ttl time.Duration) *FreshnessCache {
	return &FreshnessCache{
		entries: expirable.NewLRU[string, freshnessRecord](size, nil, ttl),
	}
}

// ShouldSkip reports whether the file version at modifiedAt was already
// processed at path. A moved file keeps its content id but not its path, so
// it is never skipped.
func (c *FreshnessCache) ShouldSkip(contentID, path string, modifiedAt time.Time) bool {
	if contentID == "" {
		return false
	}
	rec, ok := c.entries.Get(contentID)
	return ok && rec.path == path && modifiedAt.UnixMilli() <= rec.millis
}

// Record marks the version at modifiedAt as processed at path. Older
// versions at the same path never replace a newer record.
func (c *FreshnessCache) Record(contentID, path string, modifiedAt time.Time) {
	if contentID == "" {
		return
	}
	millis := modifiedAt.UnixMilli()
	if rec, ok := c.entries.Peek(contentID); ok && rec.path == path && rec.millis > millis {
		return
	}
	c.entries.Add(contentID, freshnessRecord{path: path, millis: millis})
}

// Forget drops the record for contentID.
func (c *FreshnessCache) Forget(contentID string) {
	c.entries.Remove(contentID)
}

// ForgetPath drops every record indexed at path or below the folder path.
// It returns the number of records removed.
func (c *FreshnessCache) ForgetPath(path string) int {
	prefix := strings.TrimSuffix(path, "/") + "/"
	removed := 0
	for _, id := range c.entries.Keys() {
		rec, ok := c.entries.Peek(id)
		if !ok {
			continue
		}
		if rec.path == path || strings.HasPrefix(rec.path, prefix) {
			if c.entries.Remove(id) {
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of live records.
func (c *FreshnessCache) Len() int {
	return c.entries.Len()
}
