package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"shelfwise/internal/ratelimit"
)

const openLibraryBaseURL = "https://openlibrary.org"

// maxCategories caps how many OpenLibrary subjects are carried over.
const maxCategories = 5

var yearPattern = regexp.MustCompile(`\d{4}`)

// OpenLibraryProvider queries the OpenLibrary books API. The same endpoint
// serves ISBN and LCCN lookups, distinguished only by the bibkey prefix.
type OpenLibraryProvider struct {
	httpClient   *http.Client
	limiter      *ratelimit.Limiter
	baseURL      string
	bibkeyPrefix string
}

var _ Provider = (*OpenLibraryProvider)(nil)

// NewOpenLibraryProvider creates a provider for one bibkey prefix, "ISBN" or
// "LCCN".
func NewOpenLibraryProvider(bibkeyPrefix string) *OpenLibraryProvider {
	return &OpenLibraryProvider{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		limiter:      ratelimit.New("OpenLibrary", 1),
		baseURL:      openLibraryBaseURL,
		bibkeyPrefix: bibkeyPrefix,
	}
}

// Name returns the human-readable provider name.
func (p *OpenLibraryProvider) Name() string {
	return "OpenLibrary"
}

type openLibraryBook struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Notes    any    `json:"notes"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Identifiers   struct {
		ISBN10 []string `json:"isbn_10"`
		ISBN13 []string `json:"isbn_13"`
	} `json:"identifiers"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
}

// Lookup fetches metadata for a normalized identifier. Returns (nil, nil)
// when OpenLibrary has no record under the bibkey.
func (p *OpenLibraryProvider) Lookup(ctx context.Context, id string) (*BookMetadata, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bibkey := p.bibkeyPrefix + ":" + id
	reqURL := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", p.baseURL, url.QueryEscape(bibkey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openLibrary request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openLibrary returned status %d", resp.StatusCode)
	}

	var result map[string]openLibraryBook
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding OpenLibrary response: %w", err)
	}

	book, ok := result[bibkey]
	if !ok {
		return nil, nil
	}

	return p.extract(id, book), nil
}

// extract maps an OpenLibrary record into the common metadata shape.
func (p *OpenLibraryProvider) extract(id string, book openLibraryBook) *BookMetadata {
	md := &BookMetadata{
		Title:     book.Title,
		PageCount: book.NumberOfPages,
	}
	if md.Title == "" {
		md.Title = "Unknown"
	}

	md.Authors = make([]string, 0, len(book.Authors))
	for _, a := range book.Authors {
		if a.Name != "" {
			md.Authors = append(md.Authors, a.Name)
		}
	}

	if len(book.Publishers) > 0 {
		md.Publisher = book.Publishers[0].Name
	}

	if match := yearPattern.FindString(book.PublishDate); match != "" {
		if year, err := strconv.Atoi(match); err == nil {
			md.PublishedYear = year
		}
	}

	// OpenLibrary has no dedicated description field in this response; notes
	// or the subtitle is the closest thing.
	if notes := extractText(book.Notes); notes != "" {
		md.Description = notes
	} else {
		md.Description = book.Subtitle
	}

	switch {
	case book.Cover.Large != "":
		md.CoverURL = book.Cover.Large
	case book.Cover.Medium != "":
		md.CoverURL = book.Cover.Medium
	default:
		md.CoverURL = book.Cover.Small
	}

	// Prefer provider-reported ISBNs; fall back to the queried value only for
	// its own length.
	if len(book.Identifiers.ISBN10) > 0 {
		md.ISBN10 = book.Identifiers.ISBN10[0]
	}
	if len(book.Identifiers.ISBN13) > 0 {
		md.ISBN13 = book.Identifiers.ISBN13[0]
	}
	if p.bibkeyPrefix == "ISBN" {
		switch len(id) {
		case 10:
			if md.ISBN10 == "" {
				md.ISBN10 = id
			}
		case 13:
			if md.ISBN13 == "" {
				md.ISBN13 = id
			}
		}
	}

	for _, s := range book.Subjects {
		if s.Name == "" {
			continue
		}
		md.Categories = append(md.Categories, s.Name)
		if len(md.Categories) == maxCategories {
			break
		}
	}

	return md
}

// extractText handles OpenLibrary fields that are either a plain string or an
// object with a "value" key.
func extractText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["value"].(string); ok {
			return s
		}
	}
	return ""
}
