package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"shelfwise/internal/ratelimit"
)

const googleBooksBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooksProvider queries the Google Books volumes API by ISBN.
type GoogleBooksProvider struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	baseURL    string
	apiKey     string
}

var _ Provider = (*GoogleBooksProvider)(nil)

// NewGoogleBooksProvider creates the provider. The API key is optional;
// anonymous requests work with a lower quota.
func NewGoogleBooksProvider(apiKey string) *GoogleBooksProvider {
	return &GoogleBooksProvider{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    ratelimit.New("GoogleBooks", 1),
		baseURL:    googleBooksBaseURL,
		apiKey:     apiKey,
	}
}

// Name returns the human-readable provider name.
func (p *GoogleBooksProvider) Name() string {
	return "Google Books"
}

type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type googleVolumeInfo struct {
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	Publisher           string   `json:"publisher"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	PageCount           int      `json:"pageCount"`
	Language            string   `json:"language"`
	Categories          []string `json:"categories"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
}

// Lookup fetches metadata for a normalized ISBN. Returns (nil, nil) when the
// API has no matching volume.
func (p *GoogleBooksProvider) Lookup(ctx context.Context, isbn string) (*BookMetadata, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/volumes?q=isbn:%s", p.baseURL, url.QueryEscape(isbn))
	if p.apiKey != "" {
		reqURL += "&key=" + url.QueryEscape(p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google Books request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google Books returned status %d", resp.StatusCode)
	}

	var result googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding Google Books response: %w", err)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return nil, nil
	}

	return p.extract(isbn, result.Items[0].VolumeInfo), nil
}

// extract maps a Google Books volume into the common metadata shape.
func (p *GoogleBooksProvider) extract(isbn string, vol googleVolumeInfo) *BookMetadata {
	md := &BookMetadata{
		Title:       vol.Title,
		Authors:     vol.Authors,
		Publisher:   vol.Publisher,
		Description: vol.Description,
		PageCount:   vol.PageCount,
		Language:    vol.Language,
		Categories:  vol.Categories,
	}
	if md.Title == "" {
		md.Title = "Unknown"
	}
	if md.Authors == nil {
		md.Authors = []string{}
	}

	// Prefer identifiers reported by the provider over re-deriving from the
	// queried value's length.
	for _, id := range vol.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			md.ISBN10 = id.Identifier
		case "ISBN_13":
			md.ISBN13 = id.Identifier
		}
	}
	if md.ISBN10 == "" && md.ISBN13 == "" {
		switch len(isbn) {
		case 10:
			md.ISBN10 = isbn
		case 13:
			md.ISBN13 = isbn
		}
	}

	if len(vol.PublishedDate) >= 4 {
		if year, err := strconv.Atoi(vol.PublishedDate[:4]); err == nil {
			md.PublishedYear = year
		}
	}

	if vol.ImageLinks.Thumbnail != "" {
		md.CoverURL = vol.ImageLinks.Thumbnail
	} else {
		md.CoverURL = vol.ImageLinks.SmallThumbnail
	}

	return md
}
