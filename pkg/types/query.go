package types

import (
	"sort"
	"strings"
	"time"
)

const (
	// DefaultPageSize is the number of results per page when Limit is unset
	DefaultPageSize = 10
	// MaxPageSize caps Limit
	MaxPageSize = 100
)

// DateRange bounds the document creation time. Either end may be nil.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// SearchQuery describes a full-text query with optional filters
type SearchQuery struct {
	Q         string    `json:"q"`
	Page      int       `json:"page"`
	Limit     int       `json:"limit"`
	DateRange DateRange `json:"dateRange"`
	FileTypes []string  `json:"fileType,omitempty"`
	MinSize   *int64    `json:"minSize,omitempty"` // bytes
	MaxSize   *int64    `json:"maxSize,omitempty"` // bytes
}

// Normalize applies defaults and validates the query in place.
// File types are lowercased, stripped of a leading dot, deduplicated and sorted
// so that equivalent queries compare equal.
func (q *SearchQuery) Normalize() error {
	q.Q = strings.TrimSpace(q.Q)
	if q.Q == "" {
		return invalid("q", "must not be empty")
	}

	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return invalid("page", "must be >= 1")
	}

	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return invalid("limit", "must be between 1 and 100")
	}

	if q.MinSize != nil && *q.MinSize < 0 {
		return invalid("minSize", "must not be negative")
	}
	if q.MaxSize != nil && *q.MaxSize < 0 {
		return invalid("maxSize", "must not be negative")
	}
	if q.MinSize != nil && q.MaxSize != nil && *q.MinSize > *q.MaxSize {
		return invalid("minSize", "must not exceed maxSize")
	}

	if q.DateRange.Start != nil && q.DateRange.End != nil && q.DateRange.Start.After(*q.DateRange.End) {
		return invalid("dateRange", "start must not be after end")
	}

	if len(q.FileTypes) > 0 {
		seen := make(map[string]struct{}, len(q.FileTypes))
		normalized := make([]string, 0, len(q.FileTypes))
		for _, ft := range q.FileTypes {
			ft = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ft), "."))
			if ft == "" {
				continue
			}
			if _, ok := seen[ft]; ok {
				continue
			}
			seen[ft] = struct{}{}
			normalized = append(normalized, ft)
		}
		sort.Strings(normalized)
		q.FileTypes = normalized
	}

	return nil
}

// Offset returns the number of results to skip for the current page
func (q *SearchQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// MegabytesToBytes converts a size given in megabytes
func MegabytesToBytes(mb float64) int64 {
	return int64(mb * 1024 * 1024)
}
