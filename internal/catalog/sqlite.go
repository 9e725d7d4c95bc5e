// Package catalog persists imported items and their lookup tables (authors,
// publishers, genres) in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"shelfwise/internal/importer"
)

const schema = `
CREATE TABLE IF NOT EXISTS publishers (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS authors (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS genres (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS items (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	item_kind        TEXT NOT NULL CHECK (item_kind IN ('digital', 'physical')),
	item_type        TEXT NOT NULL,
	title            TEXT NOT NULL,
	subtitle         TEXT,
	isbn             TEXT,
	lccn             TEXT,
	publisher_id     INTEGER REFERENCES publishers(id),
	publication_date TEXT,
	description      TEXT,
	pages            INTEGER,
	rating           REAL,
	reading_status   TEXT,
	cover_path       TEXT,
	format           TEXT,
	file_path        TEXT,
	condition        TEXT,
	location         TEXT,
	created_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS item_authors (
	item_id   INTEGER NOT NULL REFERENCES items(id),
	author_id INTEGER NOT NULL REFERENCES authors(id),
	PRIMARY KEY (item_id, author_id)
);

CREATE TABLE IF NOT EXISTS item_genres (
	item_id  INTEGER NOT NULL REFERENCES items(id),
	genre_id INTEGER NOT NULL REFERENCES genres(id),
	PRIMARY KEY (item_id, genre_id)
);
`

// Store is a SQLite-backed catalog. Safe for use by concurrent import
// batches; lookup-table races resolve via retry on unique violation.
type Store struct {
	db *sql.DB
}

var _ importer.Catalog = (*Store)(nil)

// Open opens or creates the catalog database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring catalog database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation matches the driver's unique-constraint error. The driver
// exposes no typed error for this, so the message text is the contract.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// findOrCreate returns the id of the named row in table, inserting it first
// if absent. A unique violation on insert means a concurrent batch created
// the row between our SELECT and INSERT; re-fetch instead of failing.
func (s *Store) findOrCreate(ctx context.Context, table, name string) (int64, error) {
	selectQ := fmt.Sprintf("SELECT id FROM %s WHERE name = ?", table)

	var id int64
	err := s.db.QueryRowContext(ctx, selectQ, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("querying %s: %w", table, err)
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (name) VALUES (?)", table), name)
	if err != nil {
		if isUniqueViolation(err) {
			if retryErr := s.db.QueryRowContext(ctx, selectQ, name).Scan(&id); retryErr == nil {
				return id, nil
			}
		}
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return res.LastInsertId()
}

func (s *Store) FindOrCreatePublisher(ctx context.Context, name string) (int64, error) {
	return s.findOrCreate(ctx, "publishers", name)
}

func (s *Store) FindOrCreateAuthor(ctx context.Context, name string) (int64, error) {
	return s.findOrCreate(ctx, "authors", name)
}

func (s *Store) FindOrCreateGenre(ctx context.Context, name string) (int64, error) {
	return s.findOrCreate(ctx, "genres", name)
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

const insertItemQuery = `
INSERT INTO items (
	item_kind, item_type, title, subtitle, isbn, lccn, publisher_id,
	publication_date, description, pages, rating, reading_status, cover_path,
	format, file_path, condition, location
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) insertItem(ctx context.Context, kind, itemType string, f importer.ItemFields, format, filePath, condition, location string) (int64, error) {
	res, err := s.db.ExecContext(ctx, insertItemQuery,
		kind, itemType, f.Title, nullString(f.Subtitle), nullString(f.ISBN),
		nullString(f.LCCN), nullInt64(f.PublisherID), nullString(f.PublicationDate),
		nullString(f.Description), nullInt(f.Pages), nullFloat(f.Rating),
		nullString(f.ReadingStatus), nullString(f.CoverPath),
		nullString(format), nullString(filePath), nullString(condition), nullString(location),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting %s item: %w", kind, err)
	}
	return res.LastInsertId()
}

func (s *Store) CreateDigitalItem(ctx context.Context, item importer.DigitalItem) (int64, error) {
	return s.insertItem(ctx, "digital", item.Type, item.ItemFields, item.Format, item.FilePath, "", "")
}

func (s *Store) CreatePhysicalItem(ctx context.Context, item importer.PhysicalItem) (int64, error) {
	return s.insertItem(ctx, "physical", item.Type, item.ItemFields, "", "", item.Condition, item.Location)
}

// ItemSummary is the slim item view returned by duplicate checks.
type ItemSummary struct {
	ID        int64  `json:"id"`
	Kind      string `json:"-"`
	Title     string `json:"title"`
	ISBN      string `json:"isbn,omitempty"`
	LCCN      string `json:"lccn,omitempty"`
	CoverPath string `json:"coverImage,omitempty"`
}

// findItem looks an item up by one identifier column, trying both the
// normalized and the raw form. Physical items win ties, matching how
// duplicates are reported. Returns nil when nothing matches.
func (s *Store) findItem(ctx context.Context, column, normalized, raw string) (*ItemSummary, error) {
	query := fmt.Sprintf(`
		SELECT id, item_kind, title, COALESCE(isbn, ''), COALESCE(lccn, ''), COALESCE(cover_path, '')
		FROM items WHERE %s IN (?, ?)
		ORDER BY CASE item_kind WHEN 'physical' THEN 0 ELSE 1 END
		LIMIT 1`, column)

	var item ItemSummary
	err := s.db.QueryRowContext(ctx, query, normalized, raw).
		Scan(&item.ID, &item.Kind, &item.Title, &item.ISBN, &item.LCCN, &item.CoverPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying items by %s: %w", column, err)
	}
	return &item, nil
}

func (s *Store) FindItemByISBN(ctx context.Context, normalized, raw string) (*ItemSummary, error) {
	return s.findItem(ctx, "isbn", normalized, raw)
}

func (s *Store) FindItemByLCCN(ctx context.Context, normalized, raw string) (*ItemSummary, error) {
	return s.findItem(ctx, "lccn", normalized, raw)
}

// AssociateAuthor links an item to an author. Repeating an association is a
// no-op.
func (s *Store) AssociateAuthor(ctx context.Context, ref importer.ItemRef, authorID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO item_authors (item_id, author_id) VALUES (?, ?)", ref.ID, authorID)
	if err != nil {
		return fmt.Errorf("associating author: %w", err)
	}
	return nil
}

// AssociateGenre links an item to a genre. Repeating an association is a
// no-op.
func (s *Store) AssociateGenre(ctx context.Context, ref importer.ItemRef, genreID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO item_genres (item_id, genre_id) VALUES (?, ?)", ref.ID, genreID)
	if err != nil {
		return fmt.Errorf("associating genre: %w", err)
	}
	return nil
}
