// Package attachment extracts text and metadata from binary documents.
//
// It is the ingest step of the index pipelines: base64 payloads are decoded
// and handed to a Processor, which detects the format from the content and
// returns the plain text together with basic metadata.
package attachment

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
)

// Content types reported by the processor
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeText = "text/plain; charset=UTF-8"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported attachment format")
	ErrMalformed         = errors.New("malformed attachment")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Attachment is the result of processing one document
type Attachment struct {
	Content       string `json:"content"`
	ContentType   string `json:"content_type"`
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	Language      string `json:"language,omitempty"`
	ContentLength int    `json:"content_length"`
}

// Processor extracts text from documents
type Processor struct {
	indexedChars int
}

// NewProcessor creates a processor keeping at most indexedChars characters of
// text. A negative value keeps everything.
func NewProcessor(indexedChars int) *Processor {
	return &Processor{indexedChars: indexedChars}
}

// Process detects the format of data and extracts its text. Empty input is
// an empty text document.
func (p *Processor) Process(data []byte) (*Attachment, error) {
	if len(data) == 0 {
		return &Attachment{ContentType: ContentTypeText}, nil
	}

	var (
		att *Attachment
		err error
	)
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		att, err = extractPDF(data)
	case isDOCX(data):
		att, err = extractDOCX(data)
	default:
		att, err = extractText(data)
	}
	if err != nil {
		return nil, err
	}

	att.Content = strings.TrimSpace(att.Content)
	if p.indexedChars >= 0 && utf8.RuneCountInString(att.Content) > p.indexedChars {
		att.Content = truncateRunes(att.Content, p.indexedChars)
	}
	att.ContentLength = utf8.RuneCountInString(att.Content)
	return att, nil
}

func extractText(data []byte) (*Attachment, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if enry.IsBinary(data) {
		return nil, ErrUnsupportedFormat
	}
	return &Attachment{
		Content:     strings.ToValidUTF8(string(data), "�"),
		ContentType: ContentTypeText,
		Language:    detectLanguage(data),
	}, nil
}

// detectLanguage classifies text content with enry. Prose and content enry
// cannot place get an empty language.
func detectLanguage(data []byte) string {
	lang := enry.GetLanguage("", data)
	if lang == enry.OtherLanguage {
		return ""
	}
	return lang
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
