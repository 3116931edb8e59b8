// Package main is the entry point for the Climate Crew API server.
//
// main stays minimal: load config, build the logger, hand both to
// internal/server and block until a signal arrives.
//
// CONFIGURATION:
//
//	-config path/to/config.yaml   (optional, default config.yaml)
//	.env in the working directory (optional)
//	CREW_* environment variables  (win over both)
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/climate-crew/internal/config"
	"github.com/sakif/climate-crew/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// NotifyContext cancels ctx on Ctrl+C or SIGTERM; server.Run then shuts
	// down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
