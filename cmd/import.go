package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ImportCmd represents the import command
type ImportCmd struct {
	Input string `short:"f" help:"Path to library export CSV file" required:""`
}

func (i *ImportCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	// The import run deletes its source file when done, so work on a copy
	// rather than consuming the user's export.
	tmpPath, err := copyToTemp(i.Input)
	if err != nil {
		return err
	}

	outcome, err := app.importer.Run(context.Background(), tmpPath)
	if err != nil {
		return err
	}

	slog.Info("import finished",
		"digitalItems", outcome.DigitalItems,
		"physicalItems", outcome.PhysicalItems,
		"skipped", outcome.Skipped,
	)
	for _, msg := range outcome.Errors {
		slog.Warn("import error", "detail", msg)
	}
	return nil
}

func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening input file: %w", err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp("", "shelfwise-import-*.csv")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("copying input file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return tmp.Name(), nil
}
