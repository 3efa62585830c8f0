package types

import "time"

// SearchHit is a single matching document
type SearchHit struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"lastModified"`
	SourcePath string    `json:"dropboxPath"`
	URL        string    `json:"url,omitempty"` // temporary download link
	Highlights []string  `json:"highlights,omitempty"`
	Score      float64   `json:"score"`
}

// SearchResponse is one page of results
type SearchResponse struct {
	Results    []SearchHit `json:"results"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	CacheHit   bool        `json:"cacheHit"`
}

// TotalPages returns ceil(total/pageSize)
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Clone returns a deep copy of the response
func (r *SearchResponse) Clone() *SearchResponse {
	if r == nil {
		return nil
	}
	out := *r
	out.Results = make([]SearchHit, len(r.Results))
	for i, hit := range r.Results {
		out.Results[i] = hit
		if hit.Highlights != nil {
			out.Results[i].Highlights = append([]string(nil), hit.Highlights...)
		}
	}
	return &out
}
