package cmd

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"shelfwise/internal/config"
)

// CLI represents the complete command structure for the shelfwise application
type CLI struct {
	// Global flags
	DBFile          string `help:"Path to catalog SQLite database file" default:"./catalog.db"`
	CoversDir       string `help:"Directory to store downloaded cover images" default:"./covers"`
	CacheTTL        string `help:"Metadata cache time-to-live duration (e.g., 24h)" default:"24h"`
	CacheMaxEntries int    `help:"Metadata cache entry ceiling" default:"1000"`

	Serve  ServeCmd  `cmd:"" help:"Run the HTTP server"`
	Import ImportCmd `cmd:"" help:"Import a library export CSV from the command line"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging()
	initConfig()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("shelfwise"),
		kong.Description("A personal media catalog with bulk CSV import and metadata enrichment."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	if err := viper.BindEnv("googlebooks.apikey", "GOOGLE_BOOKS_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("Config file not found, using defaults")
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("catalog.dbfile", cli.DBFile)
	viper.Set("covers.dir", cli.CoversDir)
	viper.Set("cache.ttl", cli.CacheTTL)
	viper.Set("cache.maxentries", cli.CacheMaxEntries)
}

func initLogging() {
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
