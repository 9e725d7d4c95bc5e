package cmd

import (
	"shelfwise/internal/catalog"
	"shelfwise/internal/config"
	"shelfwise/internal/covers"
	"shelfwise/internal/importer"
	"shelfwise/internal/metacache"
	"shelfwise/internal/metadata"
)

// app holds the wired long-lived services shared by the commands.
type app struct {
	store        *catalog.Store
	importer     *importer.Importer
	isbnResolver *metadata.Resolver
	lccnResolver *metadata.Resolver
}

// buildApp constructs the service graph: one shared metadata cache feeding
// both resolvers, a cover service on top of them, and the importer writing
// into the SQLite catalog.
func buildApp() (*app, error) {
	cache := metacache.New[*metadata.BookMetadata](config.CacheTTL(), config.CacheMaxEntries())

	isbnResolver := metadata.NewISBNResolver(cache,
		metadata.NewGoogleBooksProvider(config.GoogleBooksAPIKey()),
		metadata.NewOpenLibraryProvider("ISBN"),
	)
	lccnResolver := metadata.NewLCCNResolver(cache,
		metadata.NewOpenLibraryProvider("LCCN"),
	)

	coverService := covers.NewService(
		covers.NewDiskStore(config.CoversDir()),
		isbnResolver,
		lccnResolver,
	)

	store, err := catalog.Open(config.CatalogDBFile())
	if err != nil {
		return nil, err
	}

	return &app{
		store:        store,
		importer:     importer.New(store, coverService),
		isbnResolver: isbnResolver,
		lccnResolver: lccnResolver,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
