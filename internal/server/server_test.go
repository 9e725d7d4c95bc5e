package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfwise/internal/catalog"
	"shelfwise/internal/identifier"
	"shelfwise/internal/importer"
	"shelfwise/internal/metadata"
)

// stubImporter records the path it was handed and deletes it, like the real
// importer does.
type stubImporter struct {
	outcome *importer.Outcome
	err     error
	gotPath string
}

func (s *stubImporter) Run(_ context.Context, path string) (*importer.Outcome, error) {
	s.gotPath = path
	_ = os.Remove(path)
	return s.outcome, s.err
}

type stubResolver struct {
	md  *metadata.BookMetadata
	err error
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*metadata.BookMetadata, error) {
	return s.md, s.err
}

type stubFinder struct {
	item *catalog.ItemSummary
}

func (s *stubFinder) FindItemByISBN(_ context.Context, _, _ string) (*catalog.ItemSummary, error) {
	return s.item, nil
}

func (s *stubFinder) FindItemByLCCN(_ context.Context, _, _ string) (*catalog.ItemSummary, error) {
	return s.item, nil
}

func doRequest(t *testing.T, srv *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, nil)
	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestImportCSV(t *testing.T) {
	imp := &stubImporter{outcome: &importer.Outcome{
		PhysicalItems: 2, DigitalItems: 1, Skipped: 1,
		Errors: []string{`Row "Bad": boom`},
	}}
	srv := New(imp, &stubResolver{}, &stubResolver{}, nil)

	buf, contentType := multipartUpload(t, "file", "export.csv", "Type,Title,Authors\n")
	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", buf)
	req.Header.Set("Content-Type", contentType)

	rec, body := doRequest(t, srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	imported := body["imported"].(map[string]any)
	assert.Equal(t, float64(2), imported["physicalItems"])
	assert.Equal(t, float64(1), imported["digitalItems"])
	assert.Equal(t, float64(1), imported["skipped"])

	// The upload was spooled to a temp file for the importer.
	assert.NotEmpty(t, imp.gotPath)
}

func TestImportCSVParseFailure(t *testing.T) {
	imp := &stubImporter{err: fmt.Errorf("%w: bad quoting", importer.ErrBatchParse)}
	srv := New(imp, &stubResolver{}, &stubResolver{}, nil)

	buf, contentType := multipartUpload(t, "file", "export.csv", "broken")
	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", buf)
	req.Header.Set("Content-Type", contentType)

	rec, body := doRequest(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestImportCSVMissingFile(t *testing.T) {
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, nil)

	buf, contentType := multipartUpload(t, "wrongfield", "export.csv", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", buf)
	req.Header.Set("Content-Type", contentType)

	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestISBNLookupFound(t *testing.T) {
	md := &metadata.BookMetadata{Title: "Gatsby", CoverURL: "http://books.google.com/thumb.jpg"}
	srv := New(&stubImporter{}, &stubResolver{md: md}, &stubResolver{}, nil)

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/lookup/9780743273565", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "google-books", body["source"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "Gatsby", data["title"])
}

func TestISBNLookupOpenLibrarySource(t *testing.T) {
	md := &metadata.BookMetadata{Title: "X", CoverURL: "https://covers.openlibrary.org/b/id/1-L.jpg"}
	srv := New(&stubImporter{}, &stubResolver{md: md}, &stubResolver{}, nil)

	_, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/lookup/9780743273565", nil))
	assert.Equal(t, "open-library", body["source"])
}

func TestISBNLookupNotFound(t *testing.T) {
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, nil)

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/lookup/9780743273565", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["found"])
}

func TestISBNLookupInvalidFormat(t *testing.T) {
	resolver := &stubResolver{err: fmt.Errorf("%w: %q", identifier.ErrInvalidFormat, "not-an-isbn")}
	srv := New(&stubImporter{}, resolver, &stubResolver{}, nil)

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/lookup/not-an-isbn", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ISBN", body["error"])
}

func TestISBNLookupProviderFailure(t *testing.T) {
	resolver := &stubResolver{err: errors.New("resolver blew up")}
	srv := New(&stubImporter{}, resolver, &stubResolver{}, nil)

	rec, _ := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/lookup/9780743273565", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestISBNValidate(t *testing.T) {
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, nil)

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/validate/978-0-7432-7356-5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "9780743273565", body["isbn"])
	assert.Equal(t, "ISBN-13", body["format"])

	_, body = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/validate/0743273567", nil))
	assert.Equal(t, "ISBN-10", body["format"])

	rec, body = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/validate/9780743273566", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"])
}

func TestLCCNLookup(t *testing.T) {
	md := &metadata.BookMetadata{Title: "Congress Book"}
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{md: md}, nil)

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/lccn/lookup/2004558", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "open-library", body["source"])

	srvMiss := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, nil)
	rec, body = doRequest(t, srvMiss, httptest.NewRequest(http.MethodGet, "/api/lccn/lookup/2004558", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["found"])
}

func TestCheckDuplicate(t *testing.T) {
	finder := &stubFinder{item: &catalog.ItemSummary{ID: 7, Kind: "physical", Title: "Dune", ISBN: "9780441172719"}}
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, finder)

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/check-duplicate/9780441172719", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["isDuplicate"])
	assert.Equal(t, "physical", body["itemType"])

	srvEmpty := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, &stubFinder{})
	_, body = doRequest(t, srvEmpty, httptest.NewRequest(http.MethodGet, "/api/lccn/check-duplicate/2004558", nil))
	assert.Equal(t, false, body["isDuplicate"])
	assert.Nil(t, body["item"])
}

func TestCheckDuplicateUnavailable(t *testing.T) {
	srv := New(&stubImporter{}, &stubResolver{}, &stubResolver{}, nil)
	rec, _ := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/isbn/check-duplicate/9780441172719", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
