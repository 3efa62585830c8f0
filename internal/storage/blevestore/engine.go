// Package blevestore implements storage.Engine on Bleve indices.
package blevestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/dshills/dropsearch/internal/attachment"
	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

// pageSize bounds each request when walking every match of a query
const pageSize = 500

// Engine keeps one Bleve index per index name. An empty dir keeps
// everything in memory.
type Engine struct {
	dir string

	mu        sync.RWMutex
	indices   map[string]bleve.Index
	pipelines map[string]*storage.Pipeline

	// writeMu serializes version checks with the writes that follow them
	writeMu sync.Mutex
}

var _ storage.Engine = (*Engine)(nil)

// New opens an engine rooted at dir
func New(dir string) (*Engine, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("mkdir index dir: %w", err)
		}
	}
	pipelines, err := loadPipelines(dir)
	if err != nil {
		return nil, err
	}
	return &Engine{
		dir:       dir,
		indices:   map[string]bleve.Index{},
		pipelines: pipelines,
	}, nil
}

// openOrCreate opens an existing index at path, or creates a new one with m
func openOrCreate(path string, m mapping.IndexMapping) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("bleve open: %w", err)
		}
		return idx, nil
	}
	idx, err := bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("bleve new: %w", err)
	}
	return idx, nil
}

// EnsureIndex opens or creates index
func (e *Engine) EnsureIndex(_ context.Context, index string) error {
	if index == "" {
		return errors.New("index name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.indices[index]; ok {
		return nil
	}

	var (
		idx bleve.Index
		err error
	)
	if e.dir == "" {
		idx, err = bleve.NewMemOnly(indexMapping())
	} else {
		idx, err = openOrCreate(filepath.Join(e.dir, index+".bleve"), indexMapping())
	}
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	e.indices[index] = idx
	return nil
}

func (e *Engine) index(name string) (bleve.Index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrIndexNotFound, name)
	}
	return idx, nil
}

// EnsurePipeline creates or replaces a pipeline definition
func (e *Engine) EnsurePipeline(_ context.Context, p *storage.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := *p
	e.pipelines[p.Name] = &cp
	return savePipelines(e.dir, e.pipelines)
}

// GetPipeline returns a pipeline definition
func (e *Engine) GetPipeline(_ context.Context, name string) (*storage.Pipeline, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrPipelineNotFound, name)
	}
	cp := *p
	return &cp, nil
}

// Upsert writes doc under its id, replacing older versions of the same source path.
// A document older than the stored version of its path is dropped.
func (e *Engine) Upsert(ctx context.Context, index string, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	idx, err := e.index(index)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	versions, err := e.versions(ctx, idx, doc.SourcePath)
	if err != nil {
		return err
	}

	modified := doc.ModifiedAt.UnixMilli()
	batch := idx.NewBatch()
	for id, ms := range versions {
		if id == doc.ID {
			continue
		}
		if ms > modified {
			return nil
		}
		batch.Delete(id)
	}

	if err := batch.Index(doc.ID, indexedDocument{
		Kind:       kindDocument,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
		FileSize:   doc.FileSize,
		Content:    doc.Content,
		CreatedAt:  doc.CreatedAt.UnixMilli(),
		ModifiedAt: modified,
		SourcePath: doc.SourcePath,
	}); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("bleve batch: %w", err)
	}
	return nil
}

// versions maps each stored id for sourcePath to its modification time
func (e *Engine) versions(ctx context.Context, idx bleve.Index, sourcePath string) (map[string]int64, error) {
	versions := map[string]int64{}
	err := walk(ctx, idx, termQuery(fieldSourcePath, sourcePath), []string{fieldModifiedAt}, nil,
		func(id string, fields map[string]interface{}) {
			versions[id] = int64Field(fields, fieldModifiedAt)
		})
	return versions, err
}

// Delete removes a document; deleting an absent id is not an error
func (e *Engine) Delete(_ context.Context, index, id string) error {
	idx, err := e.index(index)
	if err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Exists reports whether a document with id is indexed
func (e *Engine) Exists(_ context.Context, index, id string) (bool, error) {
	idx, err := e.index(index)
	if err != nil {
		return false, err
	}
	doc, err := idx.Document(id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Get returns the document with id
func (e *Engine) Get(ctx context.Context, index, id string) (*types.Document, error) {
	idx, err := e.index(index)
	if err != nil {
		return nil, err
	}
	fields, err := fetch(ctx, idx, id)
	if err != nil {
		return nil, err
	}
	doc := documentFromFields(id, fields)
	doc.Content = stringField(fields, fieldContent)
	return doc, nil
}

// FindBySourcePath returns ids of documents for sourcePath, newest first
func (e *Engine) FindBySourcePath(ctx context.Context, index, sourcePath string) ([]string, error) {
	idx, err := e.index(index)
	if err != nil {
		return nil, err
	}
	var ids []string
	err = walk(ctx, idx, termQuery(fieldSourcePath, sourcePath), nil, []string{"-" + fieldModifiedAt},
		func(id string, _ map[string]interface{}) {
			ids = append(ids, id)
		})
	return ids, err
}

// FindUnderPath returns ids of documents whose source path starts with prefix
func (e *Engine) FindUnderPath(ctx context.Context, index, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	idx, err := e.index(index)
	if err != nil {
		return nil, err
	}
	q := bleve.NewPrefixQuery(prefix)
	q.SetField(fieldSourcePath)

	var ids []string
	err = walk(ctx, idx, q, nil, nil, func(id string, _ map[string]interface{}) {
		ids = append(ids, id)
	})
	return ids, err
}

// ListSourceRefs returns every (id, source path) pair in index
func (e *Engine) ListSourceRefs(ctx context.Context, index string) ([]storage.SourceRef, error) {
	idx, err := e.index(index)
	if err != nil {
		return nil, err
	}
	var refs []storage.SourceRef
	err = walk(ctx, idx, bleve.NewMatchAllQuery(), []string{fieldSourcePath}, []string{fieldSourcePath},
		func(id string, fields map[string]interface{}) {
			refs = append(refs, storage.SourceRef{ID: id, SourcePath: stringField(fields, fieldSourcePath)})
		})
	return refs, err
}

// Count returns the number of documents in index
func (e *Engine) Count(_ context.Context, index string) (int, error) {
	idx, err := e.index(index)
	if err != nil {
		return 0, err
	}
	n, err := idx.DocCount()
	return int(n), err
}

// Ingest runs data through pipeline and stages the result in index under a new id
func (e *Engine) Ingest(_ context.Context, index, pipeline, data string) (string, error) {
	e.mu.RLock()
	p, ok := e.pipelines[pipeline]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrPipelineNotFound, pipeline)
	}
	idx, err := e.index(index)
	if err != nil {
		return "", err
	}

	att, err := p.Run(data)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if err := idx.Index(id, stagedDocument{
		Kind:          kindStaged,
		Pipeline:      p.Name,
		Content:       att.Content,
		ContentType:   att.ContentType,
		Title:         att.Title,
		Author:        att.Author,
		Language:      att.Language,
		ContentLength: att.ContentLength,
	}); err != nil {
		return "", fmt.Errorf("failed to stage document: %w", err)
	}
	return id, nil
}

// GetStaged returns a staged attachment
func (e *Engine) GetStaged(ctx context.Context, index, id string) (*attachment.Attachment, error) {
	idx, err := e.index(index)
	if err != nil {
		return nil, err
	}
	fields, err := fetch(ctx, idx, id)
	if err != nil {
		return nil, err
	}
	return &attachment.Attachment{
		Content:       stringField(fields, fieldContent),
		ContentType:   stringField(fields, fieldContentType),
		Title:         stringField(fields, fieldTitle),
		Author:        stringField(fields, fieldAuthor),
		Language:      stringField(fields, fieldLanguage),
		ContentLength: int(int64Field(fields, fieldContentLength)),
	}, nil
}

// DeleteStaged removes a staged attachment
func (e *Engine) DeleteStaged(_ context.Context, index, id string) error {
	idx, err := e.index(index)
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("failed to delete staged document: %w", err)
	}
	return nil
}

// Close closes every open index
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, idx := range e.indices {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(e.indices, name)
	}
	return errors.Join(errs...)
}

func termQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

// fetch loads the stored fields of a single document
func fetch(ctx context.Context, idx bleve.Index, id string) (map[string]interface{}, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{"*"}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, storage.ErrNotFound
	}
	return res.Hits[0].Fields, nil
}

// walk visits every match of q in pages
func walk(ctx context.Context, idx bleve.Index, q query.Query, fields, sortBy []string,
	visit func(id string, fields map[string]interface{})) error {
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.Fields = fields
		if len(sortBy) > 0 {
			req.SortBy(sortBy)
		}
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("bleve search: %w", err)
		}
		for _, h := range res.Hits {
			visit(h.ID, h.Fields)
		}
		if len(res.Hits) < pageSize {
			return nil
		}
	}
}

func documentFromFields(id string, fields map[string]interface{}) *types.Document {
	return &types.Document{
		ID:         id,
		FileName:   stringField(fields, fieldFileName),
		FileType:   stringField(fields, fieldFileType),
		FileSize:   int64Field(fields, fieldFileSize),
		CreatedAt:  time.UnixMilli(int64Field(fields, fieldCreatedAt)).UTC(),
		ModifiedAt: time.UnixMilli(int64Field(fields, fieldModifiedAt)).UTC(),
		SourcePath: stringField(fields, fieldSourcePath),
	}
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func int64Field(fields map[string]interface{}, name string) int64 {
	f, _ := fields[name].(float64)
	return int64(f)
}
