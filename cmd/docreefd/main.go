// Command docreefd runs the documentation engine.
//
// Usage:
//
//	docreefd -config docreefd.yaml
//	docreefd -db docreef.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/docreef/docreef"
	"github.com/docreef/docreef/horosembed"
)

func main() {
	configPath := flag.String("config", "", "path to docreefd.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database")
	embedEndpoint := flag.String("embed-endpoint", "", "embeddings service endpoint (empty uses a no-op embedder)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *embedEndpoint); err != nil {
		logger.Error("docreefd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, embedEndpoint string) error {
	cfg, err := resolveConfig(configPath, dbPath)
	if err != nil {
		return err
	}

	db, err := docreef.OpenStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	embedder := horosembed.New(horosembed.Config{Endpoint: embedEndpoint, Logger: logger})

	e, err := docreef.New(*cfg, db, embedder, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer e.Close()

	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("docreefd: running", "db", cfg.Store.Path)

	<-ctx.Done()
	logger.Info("docreefd: shutting down")
	return nil
}

func resolveConfig(configPath, dbPath string) (*docreef.Config, error) {
	if configPath != "" {
		return docreef.LoadConfigFile(configPath)
	}

	cfg := &docreef.Config{}
	cfg.Store.Path = dbPath
	cfg.Defaults()

	if cfg.Store.Path == "" {
		fmt.Fprintln(os.Stderr, "usage: docreefd -config <file> | -db <path>")
		os.Exit(1)
	}
	return cfg, nil
}
