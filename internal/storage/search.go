package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dshills/dropsearch/pkg/types"
)

// Column weights passed to bm25(): file_name, content
const (
	fileNameWeight = 2.0
	contentWeight  = 1.0
)

// minPrefixTokenLen is the shortest token matched as a prefix
const minPrefixTokenLen = 3

// Search runs a full-text query over file names and content with the
// query's filters applied as conjunctive constraints.
func (s *SQLiteEngine) Search(ctx context.Context, index string, query *types.SearchQuery) (*SearchResult, error) {
	if err := requireIndex(ctx, s.db, index); err != nil {
		return nil, err
	}

	match := buildMatchExpression(query.Q)
	if match == "" {
		return &SearchResult{}, nil
	}

	where := `
		FROM documents_fts
		INNER JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?
		AND d.index_name = ?
	`
	args := []interface{}{match, index}
	where, args = applySearchFilters(where, args, query)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = types.DefaultPageSize
	}

	sqlQuery := fmt.Sprintf(`
		SELECT d.doc_id, d.file_name, d.file_type, d.file_size, d.created_at, d.modified_at, d.source_path,
		       bm25(documents_fts, %g, %g) AS score,
		       snippet(documents_fts, 1, '<em>', '</em>', '...', 32) AS highlight
	`, fileNameWeight, contentWeight) + where + " ORDER BY score LIMIT ? OFFSET ?"
	args = append(args, limit, query.Offset())

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &SearchResult{Total: total}
	for rows.Next() {
		var (
			hit                 Hit
			createdAt, modified int64
			highlight           string
		)
		if err := rows.Scan(&hit.Document.ID, &hit.Document.FileName, &hit.Document.FileType,
			&hit.Document.FileSize, &createdAt, &modified, &hit.Document.SourcePath,
			&hit.Score, &highlight); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		hit.Document.CreatedAt = fromMillis(createdAt)
		hit.Document.ModifiedAt = fromMillis(modified)
		// bm25 is lower-is-better; expose higher-is-better scores
		hit.Score = -hit.Score
		if strings.Contains(highlight, "<em>") {
			hit.Highlights = []string{highlight}
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, rows.Err()
}

// applySearchFilters appends the date, type and size constraints
func applySearchFilters(query string, args []interface{}, q *types.SearchQuery) (string, []interface{}) {
	if q.DateRange.Start != nil {
		query += " AND d.created_at >= ?"
		args = append(args, q.DateRange.Start.UnixMilli())
	}
	if q.DateRange.End != nil {
		query += " AND d.created_at <= ?"
		args = append(args, q.DateRange.End.UnixMilli())
	}

	if len(q.FileTypes) > 0 {
		placeholders := make([]string, len(q.FileTypes))
		for i, ft := range q.FileTypes {
			placeholders[i] = "?"
			args = append(args, ft)
		}
		query += " AND d.file_type IN (" + strings.Join(placeholders, ",") + ")"
	}

	if q.MinSize != nil {
		query += " AND d.file_size >= ?"
		args = append(args, *q.MinSize)
	}
	if q.MaxSize != nil {
		query += " AND d.file_size <= ?"
		args = append(args, *q.MaxSize)
	}

	return query, args
}

// buildMatchExpression turns free text into an FTS5 expression.
// Each token is quoted so FTS5 operators in user input are inert; tokens are
// OR-ed like a default multi_match, and longer tokens also match as prefixes.
func buildMatchExpression(q string) string {
	tokens := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}

		term := `"` + tok + `"`
		if len([]rune(tok)) >= minPrefixTokenLen {
			term += "*"
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, " OR ")
}
