// Package main is the entry point for the news API server.
//
// The main package stays minimal. Its job is to
//  1. read configuration (.env file and environment variables)
//  2. create the logger
//  3. start the server
//
// All actual logic lives in the internal/ packages.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/news-api/internal/config"
	"github.com/sakif/news-api/internal/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the threshold; info is the default.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
