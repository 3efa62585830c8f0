package searcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/internal/metrics"
	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

// Default settings
const (
	DefaultCacheSize       = 1000
	DefaultCacheTTL        = time.Hour
	DefaultLinkConcurrency = 4
)

// Index is the document index queried by the searcher
type Index interface {
	Search(ctx context.Context, query *types.SearchQuery) (*storage.SearchResult, error)
}

// LinkResolver produces temporary download links
type LinkResolver interface {
	TemporaryLink(ctx context.Context, path string) (string, error)
}

// Config contains configuration for the searcher
type Config struct {
	CacheSize       int
	CacheTTL        time.Duration
	LinkConcurrency int
}

// Searcher runs queries with response caching
type Searcher struct {
	index Index
	links LinkResolver
	cache *responseCache
	cfg   Config
}

// NewSearcher creates a Searcher. links may be nil, in which case hits carry no URL.
func NewSearcher(index Index, links LinkResolver, cfg Config) *Searcher {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.LinkConcurrency <= 0 {
		cfg.LinkConcurrency = DefaultLinkConcurrency
	}
	return &Searcher{
		index: index,
		links: links,
		cache: newResponseCache(cfg.CacheSize, cfg.CacheTTL),
		cfg:   cfg,
	}
}

// Search validates query and returns one page of results. Validation
// failures wrap types.ErrQueryValidation.
func (s *Searcher) Search(ctx context.Context, query types.SearchQuery) (*types.SearchResponse, error) {
	startTime := time.Now()

	if err := query.Normalize(); err != nil {
		metrics.RecordSearch(false, time.Since(startTime), false)
		return nil, err
	}

	key := cacheKey(&query)
	if cached, ok := s.cache.get(key); ok {
		cached.CacheHit = true
		metrics.RecordSearch(true, time.Since(startTime), true)
		return cached, nil
	}

	gen := s.cache.generation()
	result, err := s.index.Search(ctx, &query)
	if err != nil {
		metrics.RecordSearch(false, time.Since(startTime), false)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &types.SearchResponse{
		Results:    make([]types.SearchHit, len(result.Hits)),
		Total:      result.Total,
		Page:       query.Page,
		TotalPages: types.TotalPages(result.Total, query.Limit),
	}
	for i, hit := range result.Hits {
		resp.Results[i] = types.SearchHit{
			ID:         hit.Document.ID,
			FileName:   hit.Document.FileName,
			FileType:   hit.Document.FileType,
			FileSize:   hit.Document.FileSize,
			CreatedAt:  hit.Document.CreatedAt,
			ModifiedAt: hit.Document.ModifiedAt,
			SourcePath: hit.Document.SourcePath,
			Highlights: hit.Highlights,
			Score:      hit.Score,
		}
	}
	s.resolveLinks(ctx, resp.Results)

	if !s.cache.add(key, resp, gen) {
		logging.Debug("cache changed during search, response not cached")
	}
	metrics.RecordSearch(false, time.Since(startTime), true)
	return resp, nil
}

// resolveLinks fills in temporary links. Failures leave the URL empty.
func (s *Searcher) resolveLinks(ctx context.Context, hits []types.SearchHit) {
	if s.links == nil || len(hits) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.LinkConcurrency)
	for i := range hits {
		g.Go(func() error {
			url, err := s.links.TemporaryLink(ctx, hits[i].SourcePath)
			if err != nil {
				logging.WithContext(ctx).Warn("failed to get temporary link",
					logging.String("path", hits[i].SourcePath),
					logging.Err(err))
				return nil
			}
			hits[i].URL = url
			return nil
		})
	}
	_ = g.Wait()
}

// InvalidatePaths drops cached responses that contain any of paths, or a
// file below one of them
func (s *Searcher) InvalidatePaths(paths []string) {
	if len(paths) == 0 {
		return
	}
	if n := s.cache.invalidate(paths); n > 0 {
		logging.Debug("invalidated cached searches", logging.Int("responses", n), logging.Strings("paths", paths))
	}
}

// Purge drops every cached response
func (s *Searcher) Purge() {
	s.cache.purge()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.size()
}
