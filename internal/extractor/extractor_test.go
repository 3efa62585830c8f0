package extractor

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/attachment"
	"github.com/dshills/dropsearch/internal/identity"
)

type fakeIndex struct {
	existing  map[string]bool
	existsErr error
	ingested  []string
	ingestErr error
}

func (f *fakeIndex) Exists(_ context.Context, id string) (bool, error) {
	return f.existing[id], f.existsErr
}

func (f *fakeIndex) Ingest(_ context.Context, encoded string) (*attachment.Attachment, error) {
	f.ingested = append(f.ingested, encoded)
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return &attachment.Attachment{Content: string(raw)}, nil
}

func fetchOf(data string, calls *int) FetchFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		return []byte(data), nil
	}
}

var meta = Metadata{SourcePath: "/a.txt", ModifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

func TestExtract(t *testing.T) {
	idx := &fakeIndex{}
	calls := 0

	text, err := New(idx).Extract(context.Background(), meta, fetchOf("hello", &calls))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("hello"))}, idx.ingested)
}

func TestExtractSkipsIndexedVersionBeforeDownload(t *testing.T) {
	idx := &fakeIndex{existing: map[string]bool{identity.DocumentID(meta.SourcePath, meta.ModifiedAt): true}}
	calls := 0

	_, err := New(idx).Extract(context.Background(), meta, fetchOf("hello", &calls))
	assert.ErrorIs(t, err, ErrUpToDate)
	assert.Zero(t, calls)
	assert.Empty(t, idx.ingested)
}

func TestExtractFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		idx   *fakeIndex
		fetch FetchFunc
	}{
		{
			name:  "exists check",
			idx:   &fakeIndex{existsErr: boom},
			fetch: func(context.Context) ([]byte, error) { return []byte("x"), nil },
		},
		{
			name:  "download",
			idx:   &fakeIndex{},
			fetch: func(context.Context) ([]byte, error) { return nil, boom },
		},
		{
			name:  "ingest",
			idx:   &fakeIndex{ingestErr: boom},
			fetch: func(context.Context) ([]byte, error) { return []byte("x"), nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.idx).Extract(context.Background(), meta, tt.fetch)
			assert.ErrorIs(t, err, ErrExtraction)
			assert.ErrorIs(t, err, boom)
		})
	}
}
