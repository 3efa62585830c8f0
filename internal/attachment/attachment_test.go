package attachment

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, body, core string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)

	w, err = zw.Create(docxBody)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)

	if core != "" {
		w, err = zw.Create(docxCore)
		require.NoError(t, err)
		_, err = w.Write([]byte(core))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxDocument = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> budget</w:t></w:r></w:p>
    <w:p><w:r><w:t>Line</w:t><w:tab/><w:t>two</w:t></w:r></w:p>
  </w:body>
</w:document>`

const docxCoreProps = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>Budget</dc:title>
  <dc:creator>Finance Team</dc:creator>
</cp:coreProperties>`

func TestProcessText(t *testing.T) {
	p := NewProcessor(-1)

	att, err := p.Process([]byte("\xEF\xBB\xBFhello world\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", att.Content)
	assert.Equal(t, ContentTypeText, att.ContentType)
	assert.Equal(t, 11, att.ContentLength)
}

func TestProcessDOCX(t *testing.T) {
	p := NewProcessor(-1)

	att, err := p.Process(buildDOCX(t, docxDocument, docxCoreProps))
	require.NoError(t, err)
	assert.Equal(t, ContentTypeDOCX, att.ContentType)
	assert.Equal(t, "Quarterly budget\nLine\ttwo", att.Content)
	assert.Equal(t, "Budget", att.Title)
	assert.Equal(t, "Finance Team", att.Author)
}

func TestProcessDOCXWithoutCoreProperties(t *testing.T) {
	att, err := NewProcessor(-1).Process(buildDOCX(t, docxDocument, ""))
	require.NoError(t, err)
	assert.Empty(t, att.Title)
	assert.Contains(t, att.Content, "Quarterly budget")
}

func TestProcessRejectsBinary(t *testing.T) {
	_, err := NewProcessor(-1).Process([]byte{0x7f, 'E', 'L', 'F', 0x00, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestProcessEmpty(t *testing.T) {
	for _, data := range [][]byte{nil, {}} {
		att, err := NewProcessor(-1).Process(data)
		require.NoError(t, err)
		assert.Empty(t, att.Content)
		assert.Equal(t, ContentTypeText, att.ContentType)
		assert.Zero(t, att.ContentLength)
	}
}

func TestProcessDetectsLanguage(t *testing.T) {
	p := NewProcessor(-1)

	att, err := p.Process([]byte("#!/bin/sh\necho hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "Shell", att.Language)

	att, err = p.Process([]byte("meeting notes for tuesday"))
	require.NoError(t, err)
	assert.Empty(t, att.Language)

	att, err = p.Process(buildDOCX(t, docxDocument, ""))
	require.NoError(t, err)
	assert.Empty(t, att.Language)
}

func TestProcessMalformedPDF(t *testing.T) {
	_, err := NewProcessor(-1).Process([]byte("%PDF-1.4\nnot really a pdf"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestProcessTruncates(t *testing.T) {
	att, err := NewProcessor(5).Process([]byte("héllo wörld"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", att.Content)
	assert.Equal(t, 5, att.ContentLength)
}

func TestIsDOCX(t *testing.T) {
	assert.True(t, isDOCX(buildDOCX(t, docxDocument, "")))
	assert.False(t, isDOCX([]byte("PK\x03\x04broken")))
	assert.False(t, isDOCX([]byte("plain")))
}
