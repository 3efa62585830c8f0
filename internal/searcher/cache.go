package searcher

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/dropsearch/pkg/types"
)

// responseCache is an expirable LRU of search responses with a reverse index
// from source path to the keys of responses containing it.
//
// Lock order is mu, lru, pathsMu. pathsMu is never held while calling the lru.
// mu serializes writers so a response and its path entries appear together.
type responseCache struct {
	lru *expirable.LRU[string, *types.SearchResponse]

	mu  sync.Mutex
	gen uint64 // bumped by every invalidate and purge

	pathsMu sync.Mutex
	byPath  map[string]map[string]struct{}
}

func newResponseCache(size int, ttl time.Duration) *responseCache {
	c := &responseCache{byPath: make(map[string]map[string]struct{})}
	c.lru = expirable.NewLRU[string, *types.SearchResponse](size, c.onEvict, ttl)
	return c
}

// cacheKey is the canonical key of a normalized query
func cacheKey(q *types.SearchQuery) string {
	data, err := json.Marshal(q)
	if err != nil {
		return ""
	}
	return "search:" + string(data)
}

func (c *responseCache) get(key string) (*types.SearchResponse, bool) {
	resp, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return resp.Clone(), true
}

// generation returns a token for add. A response computed after the call
// is only stored if nothing was invalidated in between.
func (c *responseCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// add stores resp unless the cache was invalidated since gen. It reports
// whether resp was stored.
func (c *responseCache) add(key string, resp *types.SearchResponse, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}

	stored := resp.Clone()
	c.lru.Add(key, stored)

	c.pathsMu.Lock()
	defer c.pathsMu.Unlock()
	for _, hit := range stored.Results {
		keys, ok := c.byPath[hit.SourcePath]
		if !ok {
			keys = make(map[string]struct{})
			c.byPath[hit.SourcePath] = keys
		}
		keys[key] = struct{}{}
	}
	return true
}

// onEvict runs under the lru lock
func (c *responseCache) onEvict(key string, resp *types.SearchResponse) {
	c.pathsMu.Lock()
	defer c.pathsMu.Unlock()
	for _, hit := range resp.Results {
		if keys, ok := c.byPath[hit.SourcePath]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byPath, hit.SourcePath)
			}
		}
	}
}

// invalidate removes every response containing one of paths or a file below
// one of them. It returns the number of responses removed.
func (c *responseCache) invalidate(paths []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	c.pathsMu.Lock()
	stale := make(map[string]struct{})
	for cached, keys := range c.byPath {
		if !matchesAny(cached, paths) {
			continue
		}
		for key := range keys {
			stale[key] = struct{}{}
		}
		delete(c.byPath, cached)
	}
	c.pathsMu.Unlock()

	removed := 0
	for key := range stale {
		if c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

func (c *responseCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	c.lru.Purge()
	c.pathsMu.Lock()
	c.byPath = make(map[string]map[string]struct{})
	c.pathsMu.Unlock()
}

func (c *responseCache) size() int {
	return c.lru.Len()
}

func matchesAny(path string, targets []string) bool {
	for _, t := range targets {
		if path == t || strings.HasPrefix(path, strings.TrimSuffix(t, "/")+"/") {
			return true
		}
	}
	return false
}
