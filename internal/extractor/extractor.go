// Package extractor turns remote files into plain text through the index's
// ingest pipeline.
package extractor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/dropsearch/internal/attachment"
	"github.com/dshills/dropsearch/internal/identity"
)

var (
	// ErrUpToDate means the document for this version is already indexed
	ErrUpToDate = errors.New("document already indexed")
	// ErrExtraction wraps download and pipeline failures
	ErrExtraction = errors.New("extraction failed")
)

// Metadata identifies the version of a file being extracted
type Metadata struct {
	SourcePath string
	ModifiedAt time.Time
}

// FetchFunc downloads the file bytes
type FetchFunc func(ctx context.Context) ([]byte, error)

// Index is the subset of the document index used for extraction
type Index interface {
	Exists(ctx context.Context, id string) (bool, error)
	Ingest(ctx context.Context, encoded string) (*attachment.Attachment, error)
}

// Extractor runs files through the ingest pipeline
type Extractor struct {
	index Index
}

// New creates an Extractor
func New(index Index) *Extractor {
	return &Extractor{index: index}
}

// Extract returns the text of the file described by meta. The existence
// check runs before fetch, so an indexed version is never downloaded.
func (e *Extractor) Extract(ctx context.Context, meta Metadata, fetch FetchFunc) (string, error) {
	id := identity.DocumentID(meta.SourcePath, meta.ModifiedAt)
	exists, err := e.index.Exists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: check %s: %w", ErrExtraction, meta.SourcePath, err)
	}
	if exists {
		return "", ErrUpToDate
	}

	data, err := fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: download %s: %w", ErrExtraction, meta.SourcePath, err)
	}

	att, err := e.index.Ingest(ctx, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return "", fmt.Errorf("%w: ingest %s: %w", ErrExtraction, meta.SourcePath, err)
	}
	return att.Content, nil
}
