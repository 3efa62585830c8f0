package storage

import (
	"context"
	"errors"

	"github.com/dshills/dropsearch/internal/attachment"
	"github.com/dshills/dropsearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrIndexNotFound is returned when an operation names an unknown index
	ErrIndexNotFound = errors.New("index not found")
	// ErrPipelineNotFound is returned when ingesting through an unknown pipeline
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// Engine is an embedded document index
type Engine interface {
	// Schema operations
	EnsureIndex(ctx context.Context, index string) error
	EnsurePipeline(ctx context.Context, pipeline *Pipeline) error
	GetPipeline(ctx context.Context, name string) (*Pipeline, error)

	// Document operations
	Upsert(ctx context.Context, index string, doc *types.Document) error
	Delete(ctx context.Context, index, id string) error
	Exists(ctx context.Context, index, id string) (bool, error)
	Get(ctx context.Context, index, id string) (*types.Document, error)
	FindBySourcePath(ctx context.Context, index, sourcePath string) ([]string, error)
	FindUnderPath(ctx context.Context, index, prefix string) ([]string, error)
	ListSourceRefs(ctx context.Context, index string) ([]SourceRef, error)
	Count(ctx context.Context, index string) (int, error)

	// Search operations
	Search(ctx context.Context, index string, query *types.SearchQuery) (*SearchResult, error)

	// Ingest operations
	Ingest(ctx context.Context, index, pipeline, data string) (string, error)
	GetStaged(ctx context.Context, index, id string) (*attachment.Attachment, error)
	DeleteStaged(ctx context.Context, index, id string) error

	// Engine operations
	Close() error
}

// Pipeline is an ingest pipeline with a single attachment processor
type Pipeline struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Field        string `json:"field"` // source field holding base64 data
	TargetField  string `json:"target_field"`
	IndexedChars int    `json:"indexed_chars"` // -1 keeps the full text
	RemoveBinary bool   `json:"remove_binary"`
}

// SearchResult is one page of search hits
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Hit is a matching document. Document.Content is not populated.
type Hit struct {
	Document   types.Document
	Score      float64
	Highlights []string
}

// SourceRef pairs a document id with its source path
type SourceRef struct {
	ID         string
	SourcePath string
}
