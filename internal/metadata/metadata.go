// Package metadata resolves bibliographic identifiers into book metadata by
// consulting a shared cache and then an ordered list of external providers.
package metadata

import "context"

// BookMetadata is the resolved bibliographic record for one identifier. It is
// a transient DTO: produced by a Resolver, consumed to pre-fill a catalog
// item, never persisted.
type BookMetadata struct {
	ISBN10        string   `json:"isbn10,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear int      `json:"publishedYear,omitempty"`
	Description   string   `json:"description,omitempty"`
	CoverURL      string   `json:"coverImage,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Language      string   `json:"language,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// Provider fetches metadata for one normalized identifier from an external
// source. Lookup returns (nil, nil) when the provider has no record, letting
// the resolver fall through to the next provider; an error means the provider
// itself failed (timeout, bad status, malformed response).
type Provider interface {
	Name() string
	Lookup(ctx context.Context, id string) (*BookMetadata, error)
}
