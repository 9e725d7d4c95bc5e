// Package config centralizes runtime configuration, backed by viper so values
// can come from config.yaml, environment variables or CLI flags.
package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

const defaultCacheTTL = 24 * time.Hour

// SetDefaults registers every configuration default. Called once during
// bootstrap, before the config file is read.
func SetDefaults() {
	viper.SetDefault("listen.addr", ":8080")
	viper.SetDefault("catalog.dbfile", "./catalog.db")
	viper.SetDefault("covers.dir", "./covers")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.maxentries", 1000)
}

// ListenAddr is the HTTP listen address for serve mode.
func ListenAddr() string {
	return viper.GetString("listen.addr")
}

// CatalogDBFile is the path to the catalog SQLite database.
func CatalogDBFile() string {
	return viper.GetString("catalog.dbfile")
}

// CoversDir is the directory cover images are stored under.
func CoversDir() string {
	return viper.GetString("covers.dir")
}

// CacheTTL is the metadata cache entry lifetime. An unparseable value falls
// back to the default rather than failing startup.
func CacheTTL() time.Duration {
	raw := viper.GetString("cache.ttl")
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid cache.ttl, using default", "value", raw, "default", defaultCacheTTL)
		return defaultCacheTTL
	}
	return ttl
}

// CacheMaxEntries is the metadata cache entry ceiling.
func CacheMaxEntries() int {
	return viper.GetInt("cache.maxentries")
}

// GoogleBooksAPIKey is the optional Google Books API key.
func GoogleBooksAPIKey() string {
	return viper.GetString("googlebooks.apikey")
}
