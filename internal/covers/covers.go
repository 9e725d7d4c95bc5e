// Package covers downloads cover images for catalog items and stores them on
// disk, alongside a JPEG thumbnail for list views. Cover acquisition is always
// best effort: a book without a cover is still a book.
package covers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/disintegration/imaging"

	"shelfwise/internal/metadata"
)

const (
	userAgent     = "Mozilla/5.0 (compatible; shelfwise/1.0)"
	maxSeedLen    = 50
	thumbMaxWidth = 250
	thumbQuality  = 85
)

// FileStore persists named image files and returns the path callers should
// record.
type FileStore interface {
	Save(name string, data []byte) (string, error)
	Delete(name string) error
}

// DiskStore is a FileStore rooted at one directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates a store writing under root.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("creating cover directory: %w", err)
	}
	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing cover file: %w", err)
	}
	return path, nil
}

// Delete removes a stored file. A missing file is not an error, so retries
// and double cleanups are safe.
func (s *DiskStore) Delete(name string) error {
	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting cover file: %w", err)
	}
	return nil
}

// resolver is the slice of the metadata resolver the cover service needs.
type resolver interface {
	Resolve(ctx context.Context, raw string) (*metadata.BookMetadata, error)
}

// Service fetches covers by URL or by bibliographic identifier.
type Service struct {
	httpClient   *http.Client
	store        FileStore
	isbnResolver resolver
	lccnResolver resolver
	now          func() time.Time
}

// NewService creates a cover service. Either resolver may be nil if the
// corresponding lookup path is unused.
func NewService(store FileStore, isbnResolver, lccnResolver *metadata.Resolver) *Service {
	s := &Service{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		now:        time.Now,
	}
	if isbnResolver != nil {
		s.isbnResolver = isbnResolver
	}
	if lccnResolver != nil {
		s.lccnResolver = lccnResolver
	}
	return s
}

// FetchAndStore downloads the image at imageURL and persists it, naming the
// file from seed (usually the book title or identifier). It returns the
// stored cover path. A thumbnail is written next to it when the image
// decodes; an undecodable image still yields a stored cover.
func (s *Service) FetchAndStore(ctx context.Context, imageURL, seed string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating cover request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading cover body: %w", err)
	}

	ext := extensionFor(resp.Header.Get("Content-Type"))
	name := fmt.Sprintf("cover-%s-%d%s", sanitizeSeed(seed), s.now().UnixMilli(), ext)

	path, err := s.store.Save(name, data)
	if err != nil {
		return "", err
	}

	if err := s.storeThumbnail(name, data); err != nil {
		slog.Warn("thumbnail generation failed", "cover", name, "error", err)
	}

	return path, nil
}

// storeThumbnail writes a width-capped JPEG rendition next to the original.
func (s *Service) storeThumbnail(coverName string, data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding cover image: %w", err)
	}

	if img.Bounds().Dx() > thumbMaxWidth {
		img = imaging.Resize(img, thumbMaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbQuality)); err != nil {
		return fmt.Errorf("encoding thumbnail: %w", err)
	}

	base := strings.TrimSuffix(coverName, filepath.Ext(coverName))
	_, err = s.store.Save("thumb-"+base+".jpg", buf.Bytes())
	return err
}

// Delete removes a stored cover and its thumbnail, if either exists.
func (s *Service) Delete(coverName string) error {
	if err := s.store.Delete(coverName); err != nil {
		return err
	}
	base := strings.TrimSuffix(coverName, filepath.Ext(coverName))
	return s.store.Delete("thumb-" + base + ".jpg")
}

// ByISBN resolves an ISBN to metadata and stores its cover, returning the
// stored path. Every failure is soft: logged and reported as "" so import
// rows proceed coverless.
func (s *Service) ByISBN(ctx context.Context, isbn, seed string) string {
	return s.byIdentifier(ctx, s.isbnResolver, isbn, seed)
}

// ByLCCN is ByISBN for Library of Congress control numbers.
func (s *Service) ByLCCN(ctx context.Context, lccn, seed string) string {
	return s.byIdentifier(ctx, s.lccnResolver, lccn, seed)
}

func (s *Service) byIdentifier(ctx context.Context, r resolver, id, seed string) string {
	if r == nil || id == "" {
		return ""
	}

	md, err := r.Resolve(ctx, id)
	if err != nil {
		slog.Warn("cover lookup failed", "id", id, "error", err)
		return ""
	}
	if md == nil || md.CoverURL == "" {
		return ""
	}

	if seed == "" {
		seed = id
	}
	path, err := s.FetchAndStore(ctx, md.CoverURL, seed)
	if err != nil {
		slog.Warn("cover download failed", "id", id, "url", md.CoverURL, "error", err)
		return ""
	}
	return path
}

// extensionFor maps a Content-Type to a file extension, defaulting to .jpg.
func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

// sanitizeSeed reduces an arbitrary title or identifier to a safe filename
// fragment: alphanumerics kept, whitespace runs collapsed to a single hyphen,
// lowercased, capped in length.
func sanitizeSeed(seed string) string {
	var b strings.Builder
	for _, r := range seed {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := strings.Join(fields, "-")
	if len(out) > maxSeedLen {
		out = out[:maxSeedLen]
	}
	if out == "" {
		out = "untitled"
	}
	return out
}
