// Package searcher serves search queries over the document index.
//
// A Searcher validates the query, answers from a response cache when it can,
// otherwise queries the index and attaches a temporary download link to
// every hit:
//
//	s := searcher.NewSearcher(idx, adapter, searcher.Config{})
//	resp, err := s.Search(ctx, types.SearchQuery{Q: "quarterly report"})
//	if errors.Is(err, types.ErrQueryValidation) {
//	    // bad parameters
//	}
//
// # Response Cache
//
// Responses are cached in an expirable LRU keyed by the normalized query, so
// equivalent queries share an entry. The cache also tracks which source
// paths appear in each response:
//
//	InvalidatePaths([]string{"/reports/q1.pdf"}) // drops responses showing that file
//	InvalidatePaths([]string{"/reports"})        // and anything below a folder
//	Purge()                                      // drops everything
//
// The sync pipeline calls these after it changes the index. Cached responses
// are deep-copied in both directions, so callers may modify what they get.
//
// # Links
//
// Temporary links are resolved concurrently. A link that cannot be resolved
// leaves the hit's URL empty; the search itself still succeeds.
package searcher
