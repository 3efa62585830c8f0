package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestSearchQueryNormalize(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		q := SearchQuery{Q: "  budget  "}
		require.NoError(t, q.Normalize())
		assert.Equal(t, "budget", q.Q)
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, DefaultPageSize, q.Limit)
		assert.Equal(t, 0, q.Offset())
	})

	t.Run("normalizes file types", func(t *testing.T) {
		q := SearchQuery{Q: "x", FileTypes: []string{".PDF", "txt", "pdf", " "}}
		require.NoError(t, q.Normalize())
		assert.Equal(t, []string{"pdf", "txt"}, q.FileTypes)
	})

	t.Run("computes offset from page", func(t *testing.T) {
		q := SearchQuery{Q: "x", Page: 3, Limit: 10}
		require.NoError(t, q.Normalize())
		assert.Equal(t, 20, q.Offset())
	})

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query SearchQuery
		field string
	}{
		{"empty query", SearchQuery{Q: "   "}, "q"},
		{"negative page", SearchQuery{Q: "x", Page: -1}, "page"},
		{"limit too large", SearchQuery{Q: "x", Limit: 101}, "limit"},
		{"negative min size", SearchQuery{Q: "x", MinSize: int64Ptr(-1)}, "minSize"},
		{"min above max", SearchQuery{Q: "x", MinSize: int64Ptr(10), MaxSize: int64Ptr(5)}, "minSize"},
		{"inverted date range", SearchQuery{Q: "x", DateRange: DateRange{Start: &start, End: &end}}, "dateRange"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Normalize()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrQueryValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 3, TotalPages(21, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestMegabytesToBytes(t *testing.T) {
	assert.Equal(t, int64(1048576), MegabytesToBytes(1))
	assert.Equal(t, int64(524288), MegabytesToBytes(0.5))
}

func TestDocumentValidate(t *testing.T) {
	doc := &Document{ID: "abc", FileName: "a.pdf", SourcePath: "/a.pdf"}
	assert.NoError(t, doc.Validate())

	assert.ErrorIs(t, (&Document{FileName: "a", SourcePath: "/a"}).Validate(), ErrMissingDocumentID)
	assert.ErrorIs(t, (&Document{ID: "a", FileName: "a"}).Validate(), ErrMissingSourcePath)
	assert.ErrorIs(t, (&Document{ID: "a", SourcePath: "/a"}).Validate(), ErrMissingFileName)
	assert.ErrorIs(t, (&Document{ID: "a", FileName: "a", SourcePath: "/a", FileSize: -1}).Validate(), ErrNegativeFileSize)
}

func TestSearchResponseClone(t *testing.T) {
	orig := &SearchResponse{Results: []SearchHit{{ID: "1", Highlights: []string{"a"}}}, Total: 1}
	cp := orig.Clone()
	cp.Results[0].Highlights[0] = "b"
	cp.CacheHit = true
	assert.Equal(t, "a", orig.Results[0].Highlights[0])
	assert.False(t, orig.CacheHit)
}
