// Package storage provides the embedded index engine behind dropsearch.
//
// An Engine stores named indices of documents, named ingest pipelines and a
// staging area for pipeline output. The default implementation is SQLite
// with an FTS5 full-text index; package blevestore provides a Bleve-backed
// alternative with the same contract.
//
// # Database Schema
//
// Tables:
//   - indices: registered index names
//   - documents: one row per (index, document id)
//   - documents_fts: FTS5 index over file_name and content, kept in sync by triggers
//   - ingest_pipelines: pipeline definitions (source field, indexed chars)
//   - staged_documents: attachment output awaiting retrieval
//
// # Basic Usage
//
//	engine, err := storage.NewSQLiteEngine("./data/dropsearch.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	_ = engine.EnsureIndex(ctx, "documents")
//	_ = engine.Upsert(ctx, "documents", doc)
//
//	res, err := engine.Search(ctx, "documents", &types.SearchQuery{Q: "budget"})
//
// # Versions of a file
//
// Upsert keeps at most one document per source path. Writing a newer version
// removes older ones in the same transaction, and a write carrying an older
// modification time than the stored version is dropped.
//
// # Build Modes
//
// The SQLite driver is chosen at build time:
//
//	go build ./...                                   # modernc.org/sqlite, pure Go
//	CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...   # mattn/go-sqlite3
package storage
