package metadata

import (
	"context"
	"log/slog"

	"shelfwise/internal/identifier"
	"shelfwise/internal/metacache"
)

// Cache is the store shared by the resolvers, keyed by normalized identifier.
type Cache = metacache.Cache[*BookMetadata]

// Normalizer turns a raw identifier into a cache key. A non-nil error aborts
// resolution (the caller passed a malformed identifier); an empty key means
// there is nothing to look up and resolution reports "not found".
type Normalizer func(raw string) (string, error)

// Resolver resolves identifiers of one scheme via cache-then-provider
// fallback. The ISBN and LCCN resolvers are the same algorithm parameterized
// by normalizer and provider list.
type Resolver struct {
	scheme    string
	normalize Normalizer
	cache     *Cache
	providers []Provider
}

// NewResolver builds a resolver for one identifier scheme. Providers are
// queried in the order given; the first non-empty result wins.
func NewResolver(scheme string, normalize Normalizer, cache *Cache, providers ...Provider) *Resolver {
	return &Resolver{
		scheme:    scheme,
		normalize: normalize,
		cache:     cache,
		providers: providers,
	}
}

// NewISBNResolver builds the ISBN resolver. A raw value that fails checksum
// validation is a hard error, not a cache/provider miss.
func NewISBNResolver(cache *Cache, providers ...Provider) *Resolver {
	normalize := func(raw string) (string, error) {
		id, err := identifier.ValidateAndClassify(raw)
		if err != nil {
			return "", err
		}
		return id.Value, nil
	}
	return NewResolver("isbn", normalize, cache, providers...)
}

// NewLCCNResolver builds the LCCN resolver. The scheme has no checksum, so a
// value that normalizes to nothing is simply "not found".
func NewLCCNResolver(cache *Cache, providers ...Provider) *Resolver {
	normalize := func(raw string) (string, error) {
		return identifier.NormalizeLCCN(raw), nil
	}
	return NewResolver("lccn", normalize, cache, providers...)
}

// Resolve turns a raw identifier into metadata, or (nil, nil) when no
// provider has a record. Provider failures are soft: logged, then the next
// provider is tried, so a transient outage in one source never makes a valid
// identifier unresolvable.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*BookMetadata, error) {
	key, err := r.normalize(raw)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, nil
	}

	if md, ok := r.cache.Get(key); ok {
		slog.Debug("metadata cache hit", "scheme", r.scheme, "id", key)
		return md, nil
	}

	for _, p := range r.providers {
		md, err := p.Lookup(ctx, key)
		if err != nil {
			slog.Warn("metadata provider failed",
				"scheme", r.scheme,
				"provider", p.Name(),
				"id", key,
				"error", err,
			)
			continue
		}
		if md == nil {
			slog.Debug("provider has no record", "scheme", r.scheme, "provider", p.Name(), "id", key)
			continue
		}

		r.cache.Put(key, md)
		return md, nil
	}

	return nil, nil
}
