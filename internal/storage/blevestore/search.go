package blevestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dshills/dropsearch/internal/storage"
	"github.com/dshills/dropsearch/pkg/types"
)

const (
	fileNameBoost = 2.0
	fuzziness     = 1
)

// highlightMarkup rewrites Bleve's fragment markup to the <em> tags search clients expect
var highlightMarkup = strings.NewReplacer("<mark>", "<em>", "</mark>", "</em>")

var hitFields = []string{fieldFileName, fieldFileType, fieldFileSize, fieldCreatedAt, fieldModifiedAt, fieldSourcePath}

// Search runs a fuzzy match over file names and content with the query's
// filters applied as conjunctive constraints.
func (e *Engine) Search(ctx context.Context, index string, q *types.SearchQuery) (*storage.SearchResult, error) {
	idx, err := e.index(index)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(q.Q)
	if text == "" {
		return &storage.SearchResult{}, nil
	}

	name := bleve.NewMatchQuery(text)
	name.SetField(fieldFileName)
	name.SetBoost(fileNameBoost)
	name.SetFuzziness(fuzziness)

	content := bleve.NewMatchQuery(text)
	content.SetField(fieldContent)
	content.SetFuzziness(fuzziness)

	clauses := append([]query.Query{bleve.NewDisjunctionQuery(name, content)}, filterQueries(q)...)

	limit := q.Limit
	if limit <= 0 {
		limit = types.DefaultPageSize
	}
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(clauses...), limit, q.Offset(), false)
	req.Fields = hitFields
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(fieldContent)

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	result := &storage.SearchResult{Total: int(res.Total)}
	for _, h := range res.Hits {
		hit := storage.Hit{
			Document: *documentFromFields(h.ID, h.Fields),
			Score:    h.Score,
		}
		for _, frag := range h.Fragments[fieldContent] {
			hit.Highlights = append(hit.Highlights, highlightMarkup.Replace(frag))
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// filterQueries builds the date, type and size constraints
func filterQueries(q *types.SearchQuery) []query.Query {
	var filters []query.Query

	if q.DateRange.Start != nil || q.DateRange.End != nil {
		var start, end *float64
		if q.DateRange.Start != nil {
			ms := float64(q.DateRange.Start.UnixMilli())
			start = &ms
		}
		if q.DateRange.End != nil {
			ms := float64(q.DateRange.End.UnixMilli())
			end = &ms
		}
		filters = append(filters, numericRange(fieldCreatedAt, start, end))
	}

	if len(q.FileTypes) > 0 {
		clauses := make([]query.Query, len(q.FileTypes))
		for i, ft := range q.FileTypes {
			clauses[i] = termQuery(fieldFileType, ft)
		}
		filters = append(filters, bleve.NewDisjunctionQuery(clauses...))
	}

	if q.MinSize != nil || q.MaxSize != nil {
		var lo, hi *float64
		if q.MinSize != nil {
			v := float64(*q.MinSize)
			lo = &v
		}
		if q.MaxSize != nil {
			v := float64(*q.MaxSize)
			hi = &v
		}
		filters = append(filters, numericRange(fieldFileSize, lo, hi))
	}

	return filters
}

func numericRange(field string, lo, hi *float64) query.Query {
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
	q.SetField(field)
	return q
}
