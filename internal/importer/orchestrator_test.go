package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// fakeCatalog records writes in memory and fails on demand by title.
type fakeCatalog struct {
	publishers map[string]int64
	authors    map[string]int64
	genres     map[string]int64
	nextID     int64

	digital      []DigitalItem
	physical     []PhysicalItem
	associations map[string]int

	failTitles map[string]bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		publishers:   map[string]int64{},
		authors:      map[string]int64{},
		genres:       map[string]int64{},
		associations: map[string]int{},
		failTitles:   map[string]bool{},
	}
}

func (c *fakeCatalog) findOrCreate(m map[string]int64, name string) (int64, error) {
	if id, ok := m[name]; ok {
		return id, nil
	}
	c.nextID++
	m[name] = c.nextID
	return c.nextID, nil
}

func (c *fakeCatalog) FindOrCreatePublisher(_ context.Context, name string) (int64, error) {
	return c.findOrCreate(c.publishers, name)
}

func (c *fakeCatalog) FindOrCreateAuthor(_ context.Context, name string) (int64, error) {
	return c.findOrCreate(c.authors, name)
}

func (c *fakeCatalog) FindOrCreateGenre(_ context.Context, name string) (int64, error) {
	return c.findOrCreate(c.genres, name)
}

func (c *fakeCatalog) CreateDigitalItem(_ context.Context, item DigitalItem) (int64, error) {
	if c.failTitles[item.Title] {
		return 0, errors.New("notNull violation: title contains forbidden value")
	}
	c.digital = append(c.digital, item)
	c.nextID++
	return c.nextID, nil
}

func (c *fakeCatalog) CreatePhysicalItem(_ context.Context, item PhysicalItem) (int64, error) {
	if c.failTitles[item.Title] {
		return 0, errors.New("notNull violation: title contains forbidden value")
	}
	c.physical = append(c.physical, item)
	c.nextID++
	return c.nextID, nil
}

func (c *fakeCatalog) AssociateAuthor(_ context.Context, ref ItemRef, authorID int64) error {
	c.associations[fmt.Sprintf("author:%d:%d", ref.ID, authorID)]++
	return nil
}

func (c *fakeCatalog) AssociateGenre(_ context.Context, ref ItemRef, genreID int64) error {
	c.associations[fmt.Sprintf("genre:%d:%d", ref.ID, genreID)]++
	return nil
}

// fakeCovers resolves covers only for ISBNs it was seeded with.
type fakeCovers struct {
	byISBN map[string]string
	byLCCN map[string]string
}

func (f *fakeCovers) ByISBN(_ context.Context, isbn, _ string) string { return f.byISBN[isbn] }
func (f *fakeCovers) ByLCCN(_ context.Context, lccn, _ string) string { return f.byLCCN[lccn] }

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const libibHeader = "Type,Title,Authors,ISBN,LCCN,Publisher,Year Published,Tags,Status,Format,Location\n"

func TestRunEndToEnd(t *testing.T) {
	// Row 1: ebook with a resolvable ISBN. Row 2: physical book whose ISBN
	// yields no cover. Row 3: fails during persistence.
	csv := libibHeader +
		"eBook,Digital Book,Jane Author,9780743273565,,Scribner,2004,Fiction,Read,epub,/books/dig.epub\n" +
		"Book,Paper Book,John Writer; Jane Author,9780441478125,,Ace Books,1969,Classics,,,Shelf 1\n" +
		"Book,Broken Book,Someone,,,,,,,,\n"

	catalog := newFakeCatalog()
	catalog.failTitles["Broken Book"] = true
	covers := &fakeCovers{byISBN: map[string]string{"9780743273565": "covers/cover-digital-book-1.jpg"}}

	outcome, err := New(catalog, covers).Run(context.Background(), writeImportFile(t, csv))
	assert.NoError(t, err)

	assert.Equal(t, 1, outcome.DigitalItems)
	assert.Equal(t, 1, outcome.PhysicalItems)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Equal(t, 1, len(outcome.Errors))
	assert.True(t, strings.Contains(outcome.Errors[0], "Broken Book"))

	assert.Equal(t, 1, len(catalog.digital))
	dig := catalog.digital[0]
	assert.Equal(t, "ebook", dig.Type)
	assert.Equal(t, "epub", dig.Format)
	assert.Equal(t, "/books/dig.epub", dig.FilePath)
	assert.Equal(t, "covers/cover-digital-book-1.jpg", dig.CoverPath)
	assert.Equal(t, "completed", dig.ReadingStatus)

	assert.Equal(t, 1, len(catalog.physical))
	phys := catalog.physical[0]
	assert.Equal(t, "book", phys.Type)
	assert.Equal(t, "", phys.CoverPath)
	assert.Equal(t, "1969-01-01", phys.PublicationDate)

	// Shared author name across rows reuses one record.
	assert.Equal(t, 2, len(catalog.authors))
}

func TestRunRowIsolation(t *testing.T) {
	var b strings.Builder
	b.WriteString(libibHeader)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "Book,Book %d,Author %d,,,,,,,,\n", i, i)
	}

	catalog := newFakeCatalog()
	catalog.failTitles["Book 3"] = true

	outcome, err := New(catalog, nil).Run(context.Background(), writeImportFile(t, b.String()))
	assert.NoError(t, err)

	assert.Equal(t, 4, outcome.PhysicalItems)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Equal(t, 1, len(outcome.Errors))
	assert.True(t, strings.Contains(outcome.Errors[0], "Book 3"))

	// Rows after the failing one were still processed, in order.
	assert.Equal(t, "Book 4", catalog.physical[2].Title)
	assert.Equal(t, "Book 5", catalog.physical[3].Title)
}

func TestRunUnknownDialectSkipsAll(t *testing.T) {
	csv := "Book Id,Title,Author\n1,Some Book,Someone\n2,Other Book,Other\n"

	catalog := newFakeCatalog()
	outcome, err := New(catalog, nil).Run(context.Background(), writeImportFile(t, csv))
	assert.NoError(t, err)

	assert.Equal(t, 2, outcome.Skipped)
	assert.Equal(t, 0, outcome.PhysicalItems+outcome.DigitalItems)
	assert.Equal(t, 0, len(outcome.Errors))
	assert.Equal(t, 0, len(catalog.physical))
}

func TestRunParseFailure(t *testing.T) {
	path := writeImportFile(t, "Type,Title,Authors\n\"unterminated,row\n")

	_, err := New(newFakeCatalog(), nil).Run(context.Background(), path)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchParse))

	// The source file is removed even when the batch aborts.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunEmptyFile(t *testing.T) {
	_, err := New(newFakeCatalog(), nil).Run(context.Background(), writeImportFile(t, ""))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchParse))
}

func TestRunRemovesSourceFileOnSuccess(t *testing.T) {
	path := writeImportFile(t, libibHeader+"Book,Solo,Someone,,,,,,,,\n")

	_, err := New(newFakeCatalog(), nil).Run(context.Background(), path)
	assert.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunMissingFile(t *testing.T) {
	_, err := New(newFakeCatalog(), nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchParse))
}

func TestRunLCCNFallbackForCovers(t *testing.T) {
	csv := libibHeader + "Book,With LCCN,Someone,,76044988,,,,,,\n"

	catalog := newFakeCatalog()
	covers := &fakeCovers{byLCCN: map[string]string{"76044988": "covers/cover-with-lccn-1.jpg"}}

	outcome, err := New(catalog, covers).Run(context.Background(), writeImportFile(t, csv))
	assert.NoError(t, err)
	assert.Equal(t, 1, outcome.PhysicalItems)
	assert.Equal(t, "covers/cover-with-lccn-1.jpg", catalog.physical[0].CoverPath)
}
