// Package index binds a storage engine to the configured document index,
// staging index and ingest pipeline.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/dropsearch/internal/attachment"
	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

// ErrWrite marks a failed document write or delete
var ErrWrite = errors.New("index write failed")

// Default settings
const (
	DefaultName         = "documents"
	DefaultStagingName  = "documents-staging"
	DefaultPipelineName = "attachment"
	DefaultTimeout      = 10 * time.Second
)

// Config names the indices and pipeline used by an Index
type Config struct {
	Name         string
	StagingName  string
	PipelineName string
	Timeout      time.Duration
	IndexedChars int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.StagingName == "" {
		c.StagingName = DefaultStagingName
	}
	if c.PipelineName == "" {
		c.PipelineName = DefaultPipelineName
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.IndexedChars == 0 {
		c.IndexedChars = -1
	}
	return c
}

// Index is the document index used by the sync pipeline and the query path
type Index struct {
	engine storage.Engine
	cfg    Config
}

// New creates an Index over engine
func New(engine storage.Engine, cfg Config) *Index {
	return &Index{engine: engine, cfg: cfg.withDefaults()}
}

// Name returns the document index name
func (ix *Index) Name() string {
	return ix.cfg.Name
}

func (ix *Index) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ix.cfg.Timeout)
}

// EnsureSchema creates the document index, ingest pipeline and staging index
func (ix *Index) EnsureSchema(ctx context.Context) error {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()

	if err := ix.engine.EnsureIndex(ctx, ix.cfg.Name); err != nil {
		return fmt.Errorf("ensure index %s: %w", ix.cfg.Name, err)
	}
	pipeline := storage.NewAttachmentPipeline(ix.cfg.PipelineName, ix.cfg.IndexedChars)
	if err := ix.engine.EnsurePipeline(ctx, pipeline); err != nil {
		return fmt.Errorf("ensure pipeline %s: %w", ix.cfg.PipelineName, err)
	}
	if err := ix.engine.EnsureIndex(ctx, ix.cfg.StagingName); err != nil {
		return fmt.Errorf("ensure index %s: %w", ix.cfg.StagingName, err)
	}
	return nil
}

// Upsert writes doc under its id
func (ix *Index) Upsert(ctx context.Context, doc *types.Document) error {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()

	if err := ix.engine.Upsert(ctx, ix.cfg.Name, doc); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", ErrWrite, doc.SourcePath, err)
	}
	return nil
}

// Delete removes the document with id
func (ix *Index) Delete(ctx context.Context, id string) error {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()

	if err := ix.engine.Delete(ctx, ix.cfg.Name, id); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrWrite, id, err)
	}
	return nil
}

// Exists reports whether a document with id is indexed
func (ix *Index) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()
	return ix.engine.Exists(ctx, ix.cfg.Name, id)
}

// FindBySourcePath returns the id of the newest document for path
func (ix *Index) FindBySourcePath(ctx context.Context, path string) (string, bool, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()

	ids, err := ix.engine.FindBySourcePath(ctx, ix.cfg.Name, path)
	if err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

// FindUnderPath returns ids of documents below the folder at path
func (ix *Index) FindUnderPath(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()
	return ix.engine.FindUnderPath(ctx, ix.cfg.Name, path+"/")
}

// ListSourceRefs returns every indexed (id, source path) pair
func (ix *Index) ListSourceRefs(ctx context.Context) ([]storage.SourceRef, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()
	return ix.engine.ListSourceRefs(ctx, ix.cfg.Name)
}

// Search runs query against the document index
func (ix *Index) Search(ctx context.Context, query *types.SearchQuery) (*storage.SearchResult, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()
	return ix.engine.Search(ctx, ix.cfg.Name, query)
}

// Ingest submits base64 encoded bytes through the ingest pipeline and
// returns the extracted attachment. The staged copy is removed.
func (ix *Index) Ingest(ctx context.Context, encoded string) (*attachment.Attachment, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()

	id, err := ix.engine.Ingest(ctx, ix.cfg.StagingName, ix.cfg.PipelineName, encoded)
	if err != nil {
		return nil, err
	}
	// Staged documents are scratch space
	defer func() { _ = ix.engine.DeleteStaged(context.WithoutCancel(ctx), ix.cfg.StagingName, id) }()

	att, err := ix.engine.GetStaged(ctx, ix.cfg.StagingName, id)
	if err != nil {
		return nil, fmt.Errorf("read staged %s: %w", id, err)
	}
	return att, nil
}

// Count returns the number of indexed documents
func (ix *Index) Count(ctx context.Context) (int, error) {
	ctx, cancel := ix.timeout(ctx)
	defer cancel()
	return ix.engine.Count(ctx, ix.cfg.Name)
}
