package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/bread/internal/config"
	"github.com/vovakirdan/bread/internal/engine"
	"github.com/vovakirdan/bread/internal/logging"
	"github.com/vovakirdan/bread/internal/storage"
)

// app is a configured engine plus the settings it was built from.
type app struct {
	cfg     config.Config
	cfgPath string
	logger  *log.Logger
	engine  *engine.Engine
}

// loadConfig resolves the config file and applies the global flag overrides.
func loadConfig() (config.Config, string, error) {
	cfg, path, err := config.Load(flagConfigPath)
	if err != nil {
		return cfg, "", err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	return cfg, path, nil
}

// newApp loads the configuration and builds the engine.
// The history database is optional: the engine runs without it.
func newApp() (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, "bread", cfg.Log.Level)
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}

	var store *storage.Store
	if cfg.Storage.DBPath != "" {
		store, err = storage.Open(cfg.Storage.DBPath)
		if err != nil {
			logger.Warn("could not open history database", "err", err)
			store = nil
		}
	}

	eng, err := engine.New(engine.Options{
		Config: cfg,
		Logger: logger,
		Store:  store,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("cannot start engine: %w", err)
	}

	return &app{cfg: cfg, cfgPath: path, logger: logger, engine: eng}, nil
}

// watchConfig applies config file edits to the running engine until ctx is done.
func (a *app) watchConfig(ctx context.Context) {
	if a.cfgPath == "" {
		return
	}
	go func() {
		if err := config.Watch(ctx, a.cfgPath, a.logger, a.engine.ApplyConfig); err != nil {
			a.logger.Warn("config watch stopped", "err", err)
		}
	}()
}

// runEngine runs the frame loop in the background. The returned channel
// yields the loop's result once it stops, which happens when ctx is done or
// the quit command runs.
func (a *app) runEngine(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- a.engine.Run(ctx)
	}()
	return done
}
