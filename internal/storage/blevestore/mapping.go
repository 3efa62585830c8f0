package blevestore

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Document kinds stored in an index
const (
	kindDocument = "document"
	kindStaged   = "staged"
)

// Field names
const (
	fieldKind          = "kind"
	fieldFileName      = "fileName"
	fieldFileType      = "fileType"
	fieldFileSize      = "fileSize"
	fieldContent       = "content"
	fieldCreatedAt     = "createdAtMs"
	fieldModifiedAt    = "modifiedAtMs"
	fieldSourcePath    = "sourcePath"
	fieldPipeline      = "pipeline"
	fieldContentType   = "contentType"
	fieldTitle         = "title"
	fieldAuthor        = "author"
	fieldLanguage      = "language"
	fieldContentLength = "contentLength"
)

// indexedDocument is the shape of a searchable document
type indexedDocument struct {
	Kind       string `json:"kind"`
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	FileSize   int64  `json:"fileSize"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAtMs"`
	ModifiedAt int64  `json:"modifiedAtMs"`
	SourcePath string `json:"sourcePath"`
}

// stagedDocument is pipeline output waiting to be read back
type stagedDocument struct {
	Kind          string `json:"kind"`
	Pipeline      string `json:"pipeline"`
	Content       string `json:"content"`
	ContentType   string `json:"contentType"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Language      string `json:"language"`
	ContentLength int    `json:"contentLength"`
}

func indexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	m.TypeField = fieldKind
	m.DefaultType = kindDocument

	text := mapping.NewTextFieldMapping()
	text.Store = true
	text.IncludeTermVectors = true

	kw := mapping.NewKeywordFieldMapping()
	kw.Store = true

	num := mapping.NewNumericFieldMapping()
	num.Store = true

	stored := mapping.NewTextFieldMapping()
	stored.Store = true
	stored.Index = false

	docMapping := mapping.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(fieldFileName, text)
	docMapping.AddFieldMappingsAt(fieldContent, text)
	docMapping.AddFieldMappingsAt(fieldFileType, kw)
	docMapping.AddFieldMappingsAt(fieldSourcePath, kw)
	docMapping.AddFieldMappingsAt(fieldFileSize, num)
	docMapping.AddFieldMappingsAt(fieldCreatedAt, num)
	docMapping.AddFieldMappingsAt(fieldModifiedAt, num)
	m.AddDocumentMapping(kindDocument, docMapping)

	stagedMapping := mapping.NewDocumentMapping()
	stagedMapping.AddFieldMappingsAt(fieldPipeline, kw)
	stagedMapping.AddFieldMappingsAt(fieldContent, stored)
	stagedMapping.AddFieldMappingsAt(fieldContentType, kw)
	stagedMapping.AddFieldMappingsAt(fieldTitle, stored)
	stagedMapping.AddFieldMappingsAt(fieldAuthor, stored)
	stagedMapping.AddFieldMappingsAt(fieldLanguage, kw)
	stagedMapping.AddFieldMappingsAt(fieldContentLength, num)
	m.AddDocumentMapping(kindStaged, stagedMapping)

	return m
}
