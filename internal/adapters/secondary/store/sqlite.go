// Package store persists documents in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// SQLiteStore implements ports.DocumentStore
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ ports.DocumentStore = (*SQLiteStore)(nil)

// Open creates or opens the database at path
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenMemory creates an in-memory database. A single connection keeps
// every query on the same database.
func OpenMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: ":memory:"}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database location
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    modified_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_modified ON documents(modified_at);

CREATE TABLE IF NOT EXISTS recent_files (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    last_opened INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const currentDocumentKey = "current_document"

// Create inserts doc
func (s *SQLiteStore) Create(ctx context.Context, doc *entities.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, created_at, modified_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, toMillis(doc.CreatedAt), toMillis(doc.ModifiedAt))
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// Get loads one document
func (s *SQLiteStore) Get(ctx context.Context, id string) (*entities.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, created_at, modified_at FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ports.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	return doc, nil
}

// List returns every document, most recently modified first
func (s *SQLiteStore) List(ctx context.Context) ([]*entities.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, modified_at FROM documents ORDER BY modified_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*entities.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Update overwrites title, content and modified time
func (s *SQLiteStore) Update(ctx context.Context, doc *entities.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET title = ?, content = ?, modified_at = ? WHERE id = ?`,
		doc.Title, doc.Content, toMillis(doc.ModifiedAt), doc.ID)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}
	return expectRow(res, doc.ID)
}

// Delete removes a document together with its recent entry
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recent_files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting recent entry %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ? AND value = ?`, currentDocumentKey, id); err != nil {
		return fmt.Errorf("clearing current document: %w", err)
	}
	return tx.Commit()
}

// TouchRecent records file as opened now and trims the list to limit.
func (s *SQLiteStore) TouchRecent(ctx context.Context, file entities.RecentFile, limit int) error {
	if limit <= 0 {
		limit = entities.MaxRecentFiles
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recent_files (id, title, last_opened) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, last_opened = excluded.last_opened`,
		file.ID, file.Title, toMillis(file.LastOpened))
	if err != nil {
		return fmt.Errorf("recording recent file: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM recent_files WHERE id NOT IN (
		     SELECT id FROM recent_files ORDER BY last_opened DESC, id LIMIT ?)`, limit)
	if err != nil {
		return fmt.Errorf("trimming recent files: %w", err)
	}
	return tx.Commit()
}

// Recent returns the recent list, newest first
func (s *SQLiteStore) Recent(ctx context.Context) ([]entities.RecentFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, last_opened FROM recent_files ORDER BY last_opened DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing recent files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []entities.RecentFile
	for rows.Next() {
		var (
			f  entities.RecentFile
			ms int64
		)
		if err := rows.Scan(&f.ID, &f.Title, &ms); err != nil {
			return nil, fmt.Errorf("scanning recent file: %w", err)
		}
		f.LastOpened = fromMillis(ms)
		files = append(files, f)
	}
	return files, rows.Err()
}

// SetCurrent remembers the selected document; an empty id clears it
func (s *SQLiteStore) SetCurrent(ctx context.Context, id string) error {
	if id == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, currentDocumentKey)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, currentDocumentKey, id)
	if err != nil {
		return fmt.Errorf("setting current document: %w", err)
	}
	return nil
}

// Current returns the selected document id, or "" when none is set
func (s *SQLiteStore) Current(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, currentDocumentKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading current document: %w", err)
	}
	return id, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*entities.Document, error) {
	var (
		doc              entities.Document
		created, updated int64
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &created, &updated); err != nil {
		return nil, err
	}
	doc.CreatedAt = fromMillis(created)
	doc.ModifiedAt = fromMillis(updated)
	return &doc, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrDocumentNotFound, id)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
