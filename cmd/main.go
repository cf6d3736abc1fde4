package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/vidx/internal/session"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var store session.Store = session.NewMemoryStore()
	if db, err := shared.NewDatabase(config.Database.Path); err == nil {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		store = session.NewFallback(session.NewSQLiteStore(db), logger)
	} else {
		logger.Warn("session persistence unavailable, using in-memory store", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Store:  store,
		Logger: logger,
	})

	ctx := context.Background()
	runner.rec.Bootstrap(ctx, runner.google)
	go runner.rec.Listen(ctx, runner.google)

	app := &cli.Command{
		Name:     "vidx",
		Usage:    "Browse the movie catalog and manage your favorites",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
