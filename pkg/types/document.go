package types

import "time"

// Document is the indexed representation of a remote file
type Document struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"` // lowercase extension without the dot
	FileSize   int64     `json:"fileSize"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"lastModified"`
	SourcePath string    `json:"dropboxPath"`
}

// Validate checks that the document can be written to the index
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrMissingDocumentID
	}
	if d.SourcePath == "" {
		return ErrMissingSourcePath
	}
	if d.FileName == "" {
		return ErrMissingFileName
	}
	if d.FileSize < 0 {
		return ErrNegativeFileSize
	}
	return nil
}
