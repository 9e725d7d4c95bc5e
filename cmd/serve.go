package cmd

import (
	"log/slog"
	"net/http"

	"shelfwise/internal/config"
	"shelfwise/internal/server"
)

// ServeCmd represents the serve command
type ServeCmd struct {
	Listen string `help:"HTTP listen address" default:":8080"`
}

func (s *ServeCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	addr := s.Listen
	if addr == "" {
		addr = config.ListenAddr()
	}

	srv := server.New(app.importer, app.isbnResolver, app.lccnResolver, app.store)

	slog.Info("listening", "addr", addr)
	return http.ListenAndServe(addr, srv)
}
