package attachment

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBody = "word/document.xml"
	docxCore = "docProps/core.xml"
)

// isDOCX reports whether data is a zip archive carrying a Word document body
func isDOCX(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == docxBody {
			return true
		}
	}
	return false
}

func extractDOCX(data []byte) (*Attachment, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: docx: %v", ErrMalformed, err)
	}

	att := &Attachment{ContentType: ContentTypeDOCX}
	for _, f := range zr.File {
		switch f.Name {
		case docxBody:
			text, err := readZipXML(f, bodyText)
			if err != nil {
				return nil, err
			}
			att.Content = text
		case docxCore:
			if _, err := readZipXML(f, func(d *xml.Decoder) (string, error) {
				return "", coreProperties(d, att)
			}); err != nil {
				return nil, err
			}
		}
	}
	return att, nil
}

func readZipXML(f *zip.File, read func(*xml.Decoder) (string, error)) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: docx %s: %v", ErrMalformed, f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := read(xml.NewDecoder(rc))
	if err != nil {
		return "", fmt.Errorf("%w: docx %s: %v", ErrMalformed, f.Name, err)
	}
	return out, nil
}

// bodyText collects w:t runs, breaking lines at paragraphs and w:br
func bodyText(d *xml.Decoder) (string, error) {
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

// coreProperties reads dc:title and dc:creator
func coreProperties(d *xml.Decoder, att *Attachment) error {
	var current string
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.EndElement:
			current = ""
		case xml.CharData:
			switch current {
			case "title":
				att.Title += string(t)
			case "creator":
				att.Author += string(t)
			}
		}
	}
}
