package attachment

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads the text layer of a PDF. The parser panics on some
// malformed inputs, so panics are reported as ErrMalformed.
func extractPDF(data []byte) (att *Attachment, err error) {
	defer func() {
		if r := recover(); r != nil {
			att, err = nil, fmt.Errorf("%w: pdf: %v", ErrMalformed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %v", ErrMalformed, err)
	}

	text, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: pdf text: %v", ErrMalformed, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return nil, fmt.Errorf("%w: pdf text: %v", ErrMalformed, err)
	}

	info := reader.Trailer().Key("Info")
	return &Attachment{
		Content:     buf.String(),
		ContentType: ContentTypePDF,
		Title:       info.Key("Title").Text(),
		Author:      info.Key("Author").Text(),
	}, nil
}
