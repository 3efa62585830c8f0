package storage

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dshills/dropsearch/internal/attachment"
)

// Default pipeline settings
const (
	DefaultPipelineField       = "data"
	DefaultPipelineTargetField = "attachment"
)

// NewAttachmentPipeline returns the pipeline used to extract document text
func NewAttachmentPipeline(name string, indexedChars int) *Pipeline {
	return &Pipeline{
		Name:         name,
		Description:  "Extract attachment information",
		Field:        DefaultPipelineField,
		TargetField:  DefaultPipelineTargetField,
		IndexedChars: indexedChars,
		RemoveBinary: true,
	}
}

// Validate checks a pipeline definition
func (p *Pipeline) Validate() error {
	if p == nil {
		return errors.New("pipeline is nil")
	}
	if p.Name == "" {
		return errors.New("pipeline name is required")
	}
	if p.Field == "" {
		return errors.New("pipeline field is required")
	}
	return nil
}

// Run decodes base64 data and passes it through the attachment processor
func (p *Pipeline) Run(data string) (*attachment.Attachment, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: decode %s: %w", p.Name, p.Field, err)
	}
	att, err := attachment.NewProcessor(p.IndexedChars).Process(raw)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
	}
	return att, nil
}
