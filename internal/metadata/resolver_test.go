package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"shelfwise/internal/identifier"
	"shelfwise/internal/metacache"
)

// stubProvider scripts one provider response and records how often it was
// consulted.
type stubProvider struct {
	name  string
	md    *BookMetadata
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Lookup(_ context.Context, _ string) (*BookMetadata, error) {
	s.calls++
	return s.md, s.err
}

func newTestCache() *Cache {
	return metacache.New[*BookMetadata](24*time.Hour, 1000)
}

func TestResolveInvalidISBNIsHardError(t *testing.T) {
	p := &stubProvider{name: "stub"}
	r := NewISBNResolver(newTestCache(), p)

	md, err := r.Resolve(context.Background(), "9780743273566")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, identifier.ErrInvalidFormat))
	assert.Zero(t, md)
	assert.Equal(t, 0, p.calls)
}

func TestResolveProviderOrder(t *testing.T) {
	first := &stubProvider{name: "first", md: &BookMetadata{Title: "From First"}}
	second := &stubProvider{name: "second", md: &BookMetadata{Title: "From Second"}}
	r := NewISBNResolver(newTestCache(), first, second)

	md, err := r.Resolve(context.Background(), "9780743273565")
	assert.NoError(t, err)
	assert.Equal(t, "From First", md.Title)
	assert.Equal(t, 0, second.calls)
}

func TestResolveFallsThroughOnProviderError(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("upstream timeout")}
	second := &stubProvider{name: "second", md: &BookMetadata{Title: "From Second"}}
	cache := newTestCache()
	r := NewISBNResolver(cache, first, second)

	md, err := r.Resolve(context.Background(), "9780743273565")
	assert.NoError(t, err)
	assert.Equal(t, "From Second", md.Title)
	assert.Equal(t, 1, first.calls)

	// The fallback result must land in the cache.
	cached, ok := cache.Get("9780743273565")
	assert.True(t, ok)
	assert.Equal(t, "From Second", cached.Title)
}

func TestResolveAllProvidersEmpty(t *testing.T) {
	first := &stubProvider{name: "first"}
	second := &stubProvider{name: "second"}
	r := NewISBNResolver(newTestCache(), first, second)

	md, err := r.Resolve(context.Background(), "9780743273565")
	assert.NoError(t, err)
	assert.Zero(t, md)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestResolveCacheHitSkipsProviders(t *testing.T) {
	p := &stubProvider{name: "stub", md: &BookMetadata{Title: "Fetched"}}
	cache := newTestCache()
	r := NewISBNResolver(cache, p)

	_, err := r.Resolve(context.Background(), "9780743273565")
	assert.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	md, err := r.Resolve(context.Background(), "978-0-7432-7356-5")
	assert.NoError(t, err)
	assert.Equal(t, "Fetched", md.Title)
	assert.Equal(t, 1, p.calls)
}

func TestResolveLCCNEmptyAfterNormalization(t *testing.T) {
	p := &stubProvider{name: "stub", md: &BookMetadata{Title: "Never"}}
	r := NewLCCNResolver(newTestCache(), p)

	md, err := r.Resolve(context.Background(), "  - - ")
	assert.NoError(t, err)
	assert.Zero(t, md)
	assert.Equal(t, 0, p.calls)
}

func TestResolveLCCNNormalizesKey(t *testing.T) {
	p := &stubProvider{name: "stub", md: &BookMetadata{Title: "Found"}}
	cache := newTestCache()
	r := NewLCCNResolver(cache, p)

	_, err := r.Resolve(context.Background(), " 2004-558 ")
	assert.NoError(t, err)

	_, ok := cache.Get("2004558")
	assert.True(t, ok)
}
