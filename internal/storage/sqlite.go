package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/dropsearch/internal/attachment"
	"github.com/dshills/dropsearch/pkg/types"
)

// SQLiteEngine implements Engine using SQLite and FTS5
type SQLiteEngine struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteEngine opens (or creates) the database at dbPath and applies migrations
func NewSQLiteEngine(dbPath string) (*SQLiteEngine, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteEngine{db: db}, nil
}

// SchemaVersion returns the applied schema version
func (s *SQLiteEngine) SchemaVersion(ctx context.Context) (string, error) {
	v, err := schemaVersion(ctx, s.db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Close closes the database connection
func (s *SQLiteEngine) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction, committing when it returns nil
func (s *SQLiteEngine) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Schema operations

// EnsureIndex registers index if it does not exist
func (s *SQLiteEngine) EnsureIndex(ctx context.Context, index string) error {
	if index == "" {
		return errors.New("index name is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indices (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		index, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	return nil
}

// EnsurePipeline creates or replaces a pipeline definition
func (s *SQLiteEngine) EnsurePipeline(ctx context.Context, p *Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO ingest_pipelines (name, description, field, target_field, indexed_chars, remove_binary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			field = excluded.field,
			target_field = excluded.target_field,
			indexed_chars = excluded.indexed_chars,
			remove_binary = excluded.remove_binary,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Field, p.TargetField, p.IndexedChars, p.RemoveBinary, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put pipeline %s: %w", p.Name, err)
	}
	return nil
}

// GetPipeline returns a pipeline definition
func (s *SQLiteEngine) GetPipeline(ctx context.Context, name string) (*Pipeline, error) {
	return s.getPipelineWithQuerier(ctx, s.db, name)
}

func (s *SQLiteEngine) getPipelineWithQuerier(ctx context.Context, q querier, name string) (*Pipeline, error) {
	query := `
		SELECT name, COALESCE(description, ''), field, target_field, indexed_chars, remove_binary
		FROM ingest_pipelines
		WHERE name = ?
	`
	var p Pipeline
	err := q.QueryRowContext(ctx, query, name).Scan(
		&p.Name, &p.Description, &p.Field, &p.TargetField, &p.IndexedChars, &p.RemoveBinary)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func requireIndex(ctx context.Context, q querier, index string) error {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM indices WHERE name = ?`, index).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	return err
}

// Document operations

// Upsert writes doc under its id, replacing older versions of the same source path.
// A document older than the stored version of its path is dropped.
func (s *SQLiteEngine) Upsert(ctx context.Context, index string, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := requireIndex(ctx, q, index); err != nil {
			return err
		}

		var newer int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM documents
			WHERE index_name = ? AND source_path = ? AND modified_at > ? AND doc_id <> ?
		`, index, doc.SourcePath, doc.ModifiedAt.UnixMilli(), doc.ID).Scan(&newer)
		if err != nil {
			return fmt.Errorf("failed to check versions: %w", err)
		}
		if newer > 0 {
			return nil
		}

		if _, err := q.ExecContext(ctx, `
			DELETE FROM documents
			WHERE index_name = ? AND source_path = ? AND doc_id <> ?
		`, index, doc.SourcePath, doc.ID); err != nil {
			return fmt.Errorf("failed to remove older versions: %w", err)
		}

		query := `
			INSERT INTO documents (index_name, doc_id, file_name, file_type, file_size, content,
			                       created_at, modified_at, source_path, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(index_name, doc_id) DO UPDATE SET
				file_name = excluded.file_name,
				file_type = excluded.file_type,
				file_size = excluded.file_size,
				content = excluded.content,
				created_at = excluded.created_at,
				modified_at = excluded.modified_at,
				source_path = excluded.source_path,
				indexed_at = excluded.indexed_at
		`
		_, err = q.ExecContext(ctx, query,
			index, doc.ID, doc.FileName, doc.FileType, doc.FileSize, doc.Content,
			doc.CreatedAt.UnixMilli(), doc.ModifiedAt.UnixMilli(), doc.SourcePath, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
		return nil
	})
}

// Delete removes a document; deleting an absent id is not an error
func (s *SQLiteEngine) Delete(ctx context.Context, index, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE index_name = ? AND doc_id = ?`, index, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Exists reports whether a document with id is indexed
func (s *SQLiteEngine) Exists(ctx context.Context, index, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE index_name = ? AND doc_id = ? LIMIT 1`, index, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the document with id
func (s *SQLiteEngine) Get(ctx context.Context, index, id string) (*types.Document, error) {
	query := `
		SELECT doc_id, file_name, file_type, file_size, content, created_at, modified_at, source_path
		FROM documents
		WHERE index_name = ? AND doc_id = ?
	`
	var (
		doc                 types.Document
		createdAt, modified int64
	)
	err := s.db.QueryRowContext(ctx, query, index, id).Scan(
		&doc.ID, &doc.FileName, &doc.FileType, &doc.FileSize, &doc.Content,
		&createdAt, &modified, &doc.SourcePath)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = fromMillis(createdAt)
	doc.ModifiedAt = fromMillis(modified)
	return &doc, nil
}

// FindBySourcePath returns ids of documents for sourcePath, newest first
func (s *SQLiteEngine) FindBySourcePath(ctx context.Context, index, sourcePath string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT doc_id FROM documents
		WHERE index_name = ? AND source_path = ?
		ORDER BY modified_at DESC
	`, index, sourcePath)
}

// FindUnderPath returns ids of documents whose source path starts with prefix
func (s *SQLiteEngine) FindUnderPath(ctx context.Context, index, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	return s.queryIDs(ctx, `
		SELECT doc_id FROM documents
		WHERE index_name = ? AND substr(source_path, 1, length(?)) = ?
	`, index, prefix, prefix)
}

func (s *SQLiteEngine) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSourceRefs returns every (id, source path) pair in index
func (s *SQLiteEngine) ListSourceRefs(ctx context.Context, index string) ([]SourceRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, source_path FROM documents WHERE index_name = ? ORDER BY source_path`, index)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []SourceRef
	for rows.Next() {
		var ref SourceRef
		if err := rows.Scan(&ref.ID, &ref.SourcePath); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Count returns the number of documents in index
func (s *SQLiteEngine) Count(ctx context.Context, index string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE index_name = ?`, index).Scan(&n)
	return n, err
}

// Ingest operations

// Ingest runs data through pipeline and stages the result in index under a new id
func (s *SQLiteEngine) Ingest(ctx context.Context, index, pipeline, data string) (string, error) {
	p, err := s.GetPipeline(ctx, pipeline)
	if err != nil {
		return "", err
	}
	if err := requireIndex(ctx, s.db, index); err != nil {
		return "", err
	}

	att, err := p.Run(data)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO staged_documents (index_name, doc_id, pipeline, content, content_type, title, author, language, content_length, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, index, id, p.Name, att.Content, att.ContentType, att.Title, att.Author, att.Language, att.ContentLength, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to stage document: %w", err)
	}
	return id, nil
}

// GetStaged returns a staged attachment
func (s *SQLiteEngine) GetStaged(ctx context.Context, index, id string) (*attachment.Attachment, error) {
	query := `
		SELECT content, COALESCE(content_type, ''), COALESCE(title, ''), COALESCE(author, ''), COALESCE(language, ''), content_length
		FROM staged_documents
		WHERE index_name = ? AND doc_id = ?
	`
	var att attachment.Attachment
	err := s.db.QueryRowContext(ctx, query, index, id).Scan(
		&att.Content, &att.ContentType, &att.Title, &att.Author, &att.Language, &att.ContentLength)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

// DeleteStaged removes a staged attachment
func (s *SQLiteEngine) DeleteStaged(ctx context.Context, index, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM staged_documents WHERE index_name = ? AND doc_id = ?`, index, id)
	if err != nil {
		return fmt.Errorf("failed to delete staged document: %w", err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
