// Package importer drives bulk CSV imports: parse, detect the export
// dialect, then run every row through a map-enrich-persist pipeline where
// failures are isolated at row granularity.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// ItemRef points at a created catalog item for association calls.
type ItemRef struct {
	ID      int64
	Digital bool
}

// ItemFields is the column set shared by digital and physical items.
type ItemFields struct {
	Title           string
	Subtitle        string
	ISBN            string
	LCCN            string
	PublisherID     *int64
	PublicationDate string
	Description     string
	Pages           *int
	Rating          *float64
	ReadingStatus   string
	CoverPath       string
}

// DigitalItem is the persistence shape for an imported digital item.
type DigitalItem struct {
	ItemFields
	Type     string
	Format   string
	FilePath string
}

// PhysicalItem is the persistence shape for an imported physical item.
type PhysicalItem struct {
	ItemFields
	Type      string
	Condition string
	Location  string
}

// Catalog is the persistence surface the orchestrator needs. Find-or-create
// operations must treat a concurrent duplicate insert as "already exists";
// associations must be idempotent.
type Catalog interface {
	FindOrCreatePublisher(ctx context.Context, name string) (int64, error)
	FindOrCreateAuthor(ctx context.Context, name string) (int64, error)
	FindOrCreateGenre(ctx context.Context, name string) (int64, error)
	CreateDigitalItem(ctx context.Context, item DigitalItem) (int64, error)
	CreatePhysicalItem(ctx context.Context, item PhysicalItem) (int64, error)
	AssociateAuthor(ctx context.Context, ref ItemRef, authorID int64) error
	AssociateGenre(ctx context.Context, ref ItemRef, genreID int64) error
}

// CoverFetcher resolves an identifier to a stored cover path, "" when no
// cover could be obtained.
type CoverFetcher interface {
	ByISBN(ctx context.Context, isbn, seed string) string
	ByLCCN(ctx context.Context, lccn, seed string) string
}

// Outcome is the aggregate result of one import batch.
type Outcome struct {
	PhysicalItems int      `json:"physicalItems"`
	DigitalItems  int      `json:"digitalItems"`
	Skipped       int      `json:"skipped"`
	Errors        []string `json:"errors"`
}

// Importer runs import batches against a catalog and cover fetcher.
type Importer struct {
	catalog Catalog
	covers  CoverFetcher
}

// New creates an importer. covers may be nil to disable cover acquisition.
func New(catalog Catalog, covers CoverFetcher) *Importer {
	return &Importer{catalog: catalog, covers: covers}
}

// Run imports the CSV at path and deletes it afterwards, whether the batch
// succeeded or not. Rows are processed sequentially in source order; a
// failing row is recorded and skipped, never aborting the batch. Only a file
// that cannot be parsed at all returns an error.
func (imp *Importer) Run(ctx context.Context, path string) (*Outcome, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("removing import file failed", "path", path, "error", err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchParse, err)
	}
	header, rows, err := readRows(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	dialect := DetectDialect(header)
	if dialect == DialectUnknown {
		slog.Warn("unrecognized import dialect, skipping all rows", "rows", len(rows))
	} else {
		slog.Info("import batch started", "dialect", dialect.String(), "rows", len(rows))
	}

	outcome := &Outcome{Errors: []string{}}
	for _, row := range rows {
		if dialect == DialectUnknown {
			outcome.Skipped++
			continue
		}

		if err := imp.importRow(ctx, dialect, row, outcome); err != nil {
			label := row.get("Title", "title")
			if label == "" {
				label = "unknown"
			}
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Row %q: %v", label, err))
			outcome.Skipped++
		}
	}

	slog.Info("import batch finished",
		"digital", outcome.DigitalItems,
		"physical", outcome.PhysicalItems,
		"skipped", outcome.Skipped,
		"errors", len(outcome.Errors),
	)
	return outcome, nil
}

// importRow runs one row through mapping, enrichment and persistence. Any
// returned error counts against this row alone.
func (imp *Importer) importRow(ctx context.Context, dialect Dialect, row Row, outcome *Outcome) error {
	nr := MapRow(dialect, row)

	var publisherID *int64
	if nr.PublisherName != "" {
		id, err := imp.catalog.FindOrCreatePublisher(ctx, nr.PublisherName)
		if err != nil {
			return fmt.Errorf("publisher %q: %w", nr.PublisherName, err)
		}
		publisherID = &id
	}

	// Cover acquisition is best effort and always optional. ISBN is tried
	// first, LCCN only when that yields nothing.
	var coverPath string
	if imp.covers != nil {
		if nr.ISBN != "" {
			coverPath = imp.covers.ByISBN(ctx, nr.ISBN, nr.Title)
		}
		if coverPath == "" && nr.LCCN != "" {
			coverPath = imp.covers.ByLCCN(ctx, nr.LCCN, nr.Title)
		}
	}

	fields := ItemFields{
		Title:           nr.Title,
		Subtitle:        nr.Subtitle,
		ISBN:            nr.ISBN,
		LCCN:            nr.LCCN,
		PublisherID:     publisherID,
		PublicationDate: nr.PublicationDate,
		Description:     nr.Description,
		Pages:           nr.PageCount,
		Rating:          nr.Rating,
		ReadingStatus:   nr.ReadingStatus,
		CoverPath:       coverPath,
	}

	var ref ItemRef
	if nr.IsDigital {
		id, err := imp.catalog.CreateDigitalItem(ctx, DigitalItem{
			ItemFields: fields,
			Type:       "ebook",
			Format:     nr.Format,
			FilePath:   nr.Location,
		})
		if err != nil {
			return fmt.Errorf("creating digital item: %w", err)
		}
		ref = ItemRef{ID: id, Digital: true}
	} else {
		id, err := imp.catalog.CreatePhysicalItem(ctx, PhysicalItem{
			ItemFields: fields,
			Type:       "book",
			Condition:  nr.Condition,
			Location:   nr.Location,
		})
		if err != nil {
			return fmt.Errorf("creating physical item: %w", err)
		}
		ref = ItemRef{ID: id}
	}

	for _, name := range nr.AuthorNames {
		authorID, err := imp.catalog.FindOrCreateAuthor(ctx, name)
		if err != nil {
			return fmt.Errorf("author %q: %w", name, err)
		}
		if err := imp.catalog.AssociateAuthor(ctx, ref, authorID); err != nil {
			return fmt.Errorf("associating author %q: %w", name, err)
		}
	}

	for _, name := range nr.TagNames {
		genreID, err := imp.catalog.FindOrCreateGenre(ctx, name)
		if err != nil {
			return fmt.Errorf("genre %q: %w", name, err)
		}
		if err := imp.catalog.AssociateGenre(ctx, ref, genreID); err != nil {
			return fmt.Errorf("associating genre %q: %w", name, err)
		}
	}

	if nr.IsDigital {
		outcome.DigitalItems++
	} else {
		outcome.PhysicalItems++
	}
	return nil
}
