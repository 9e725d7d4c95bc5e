// Package server exposes the import pipeline and identifier lookups over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"shelfwise/internal/catalog"
	"shelfwise/internal/identifier"
	"shelfwise/internal/importer"
	"shelfwise/internal/metadata"
)

// maxUploadBytes caps the multipart form size of an import upload.
const maxUploadBytes = 32 << 20

// ImportRunner runs one import batch from a file on disk.
type ImportRunner interface {
	Run(ctx context.Context, path string) (*importer.Outcome, error)
}

// Resolver resolves a raw identifier to metadata.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*metadata.BookMetadata, error)
}

// ItemFinder checks the catalog for an existing item by identifier.
type ItemFinder interface {
	FindItemByISBN(ctx context.Context, normalized, raw string) (*catalog.ItemSummary, error)
	FindItemByLCCN(ctx context.Context, normalized, raw string) (*catalog.ItemSummary, error)
}

// Server is the HTTP front end.
type Server struct {
	router   chi.Router
	importer ImportRunner
	isbn     Resolver
	lccn     Resolver
	finder   ItemFinder
}

// New wires the routes. finder may be nil to disable duplicate checks.
func New(imp ImportRunner, isbn, lccn Resolver, finder ItemFinder) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		importer: imp,
		isbn:     isbn,
		lccn:     lccn,
		finder:   finder,
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/import/csv", s.handleImportCSV)
		r.Route("/isbn", func(r chi.Router) {
			r.Get("/lookup/{isbn}", s.handleISBNLookup)
			r.Get("/validate/{isbn}", s.handleISBNValidate)
			r.Get("/check-duplicate/{isbn}", s.handleISBNDuplicate)
		})
		r.Route("/lccn", func(r chi.Router) {
			r.Get("/lookup/{lccn}", s.handleLCCNLookup)
			r.Get("/check-duplicate/{lccn}", s.handleLCCNDuplicate)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImportCSV accepts a multipart upload under the "file" field, spools
// it to a temp file and runs the import batch. The batch run owns the temp
// file's cleanup.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no CSV file provided"})
		return
	}
	defer func() { _ = file.Close() }()

	tmp, err := os.CreateTemp("", "shelfwise-import-*.csv")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}
	_ = tmp.Close()

	batchID := uuid.NewString()
	slog.Info("import upload received", "batch", batchID, "filename", header.Filename, "bytes", header.Size)

	outcome, err := s.importer.Run(r.Context(), tmp.Name())
	if err != nil {
		slog.Warn("import batch failed", "batch", batchID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "failed to import CSV",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "CSV import completed",
		"imported": outcome,
	})
}

// coverSource guesses which provider served a record from its cover URL.
func coverSource(md *metadata.BookMetadata) string {
	if strings.Contains(md.CoverURL, "googleapis") || strings.Contains(md.CoverURL, "books.google") {
		return "google-books"
	}
	return "open-library"
}

func (s *Server) handleISBNLookup(w http.ResponseWriter, r *http.Request) {
	isbn := chi.URLParam(r, "isbn")

	md, err := s.isbn.Resolve(r.Context(), isbn)
	if err != nil {
		if errors.Is(err, identifier.ErrInvalidFormat) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "Invalid ISBN",
				"message": "The provided ISBN is not in a valid ISBN-10 or ISBN-13 format",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ISBN lookup failed"})
		return
	}
	if md == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"found":   false,
			"error":   "Book not found",
			"message": fmt.Sprintf("No book found with ISBN: %s", isbn),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"found":  true,
		"source": coverSource(md),
		"data":   md,
	})
}

func (s *Server) handleISBNValidate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "isbn")

	id, err := identifier.ValidateAndClassify(raw)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"isbn":  raw,
			"error": "Invalid ISBN format",
		})
		return
	}

	format := "ISBN-10"
	if id.Scheme == identifier.SchemeISBN13 {
		format = "ISBN-13"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"isbn":   id.Value,
		"format": format,
	})
}

func (s *Server) handleLCCNLookup(w http.ResponseWriter, r *http.Request) {
	lccn := chi.URLParam(r, "lccn")

	md, err := s.lccn.Resolve(r.Context(), lccn)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "LCCN lookup failed"})
		return
	}
	if md == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"found":   false,
			"error":   "Book not found",
			"message": fmt.Sprintf("No book found with LCCN: %s", lccn),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"found":  true,
		"source": "open-library",
		"data":   md,
	})
}

func (s *Server) handleISBNDuplicate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "isbn")
	s.handleDuplicate(w, r, identifier.NormalizeISBN(raw), raw, s.finderISBN)
}

func (s *Server) handleLCCNDuplicate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "lccn")
	s.handleDuplicate(w, r, identifier.NormalizeLCCN(raw), raw, s.finderLCCN)
}

func (s *Server) finderISBN(ctx context.Context, normalized, raw string) (*catalog.ItemSummary, error) {
	return s.finder.FindItemByISBN(ctx, normalized, raw)
}

func (s *Server) finderLCCN(ctx context.Context, normalized, raw string) (*catalog.ItemSummary, error) {
	return s.finder.FindItemByLCCN(ctx, normalized, raw)
}

type findFunc func(ctx context.Context, normalized, raw string) (*catalog.ItemSummary, error)

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request, normalized, raw string, find findFunc) {
	if s.finder == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "duplicate check unavailable"})
		return
	}

	item, err := find(r.Context(), normalized, raw)
	if err != nil {
		slog.Error("duplicate check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check for duplicates"})
		return
	}

	if item == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"isDuplicate": false,
			"itemType":    nil,
			"item":        nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"isDuplicate": true,
		"itemType":    item.Kind,
		"item":        item,
	})
}
