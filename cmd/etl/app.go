package main

import (
	"context"
	"fmt"

	"github.com/cesargomez89/flixetl/internal/config"
	"github.com/cesargomez89/flixetl/internal/fetch"
	"github.com/cesargomez89/flixetl/internal/httpclient"
	"github.com/cesargomez89/flixetl/internal/logger"
	"github.com/cesargomez89/flixetl/internal/pipeline"
	"github.com/cesargomez89/flixetl/internal/storage"
	"github.com/cesargomez89/flixetl/internal/store"
	"github.com/cesargomez89/flixetl/internal/tasks"
)

type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *store.DB
	settings *store.SettingsRepo
	runner   *pipeline.Runner
}

// newApp opens the store and assembles the runner. withRunner is false for
// commands that only read history.
func newApp(ctx context.Context, cfg *config.Config, withRunner bool) (*app, error) {
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log, db: db, settings: store.NewSettingsRepo(db)}
	if !withRunner {
		return a, nil
	}

	if err := db.ResetStuckRuns(ctx); err != nil {
		log.Warn("Failed to reset interrupted runs", "error", err)
	}
	if err := storage.EnsureDir(cfg.DataDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	spec, err := pipeline.Load(cfg.PipelinePath, cfg.DataDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	dag, err := pipeline.FromSpec(spec)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := httpclient.NewClient(httpclient.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	})
	dispatcher := pipeline.NewDispatcher()
	tasks.Register(dispatcher, tasks.Deps{
		Fetcher:   fetch.New(client, log.WithComponent("fetch").Logger),
		DB:        db,
		Settings:  a.settings,
		BatchSize: cfg.BatchSize,
	})

	a.runner, err = pipeline.NewRunner(dag, dispatcher, pipeline.Options{
		Recorder:    db,
		Lease:       db,
		Logger:      log,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
