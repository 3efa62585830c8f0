// Package types provides shared type definitions for dropsearch.
//
// These types cross package boundaries: the sync pipeline writes Documents,
// the query path accepts a SearchQuery and returns a SearchResponse.
//
// # Documents
//
// A Document is the indexed form of one remote file. Its ID is derived from
// the file's source path and modification time, so reprocessing the same
// version of a file always targets the same document:
//
//	doc := &types.Document{
//	    ID:         identity.DocumentID("/reports/q1.pdf", modifiedAt),
//	    FileName:   "q1.pdf",
//	    FileType:   "pdf",
//	    SourcePath: "/reports/q1.pdf",
//	}
//
// # Queries
//
// SearchQuery carries the free-text query, pagination and the optional
// filters. Normalize applies defaults and rejects invalid combinations with
// an error wrapping ErrQueryValidation:
//
//	q := types.SearchQuery{Q: "budget", FileTypes: []string{"pdf"}}
//	if err := q.Normalize(); err != nil {
//	    // errors.Is(err, types.ErrQueryValidation)
//	}
//
// Sizes are expressed in bytes. Callers that accept megabytes convert with
// MegabytesToBytes.
package types
