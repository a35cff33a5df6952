// forgeshell - An interactive AI developer assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/forgeshell/internal/agent"
	"github.com/jeranaias/forgeshell/internal/cli"
	"github.com/jeranaias/forgeshell/internal/config"
	"github.com/jeranaias/forgeshell/internal/history"
	"github.com/jeranaias/forgeshell/internal/plan"
	"github.com/jeranaias/forgeshell/internal/provider"
	"github.com/jeranaias/forgeshell/internal/tools"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "version") {
		fmt.Printf("forgeshell %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, logClose, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C during a prompt is handled by the REPL; a second signal or
	// SIGTERM tears the whole process down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := provider.NewClient(&provider.ClientConfig{
		BaseURL:           cfg.Provider.BaseURL,
		Model:             cfg.Provider.Model,
		ConnectTimeout:    time.Duration(cfg.Provider.ConnectTimeoutSecs) * time.Second,
		MaxRetries:        cfg.Provider.MaxRetries,
		RetryDelay:        time.Second,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	})
	if !client.Healthy(ctx) {
		fmt.Fprintln(os.Stderr, "Warning: Ollama is not reachable at "+cfg.Provider.BaseURL)
	}

	registry := tools.NewRegistry()
	scheduler := agent.NewScheduler(cfg.Scheduler.MaxConcurrent, logger)
	engine := plan.NewEngine(logger)
	runner := plan.NewRunner(engine, registry, client, logger)

	var store *history.Store
	if cfg.History.Enabled {
		if err := config.EnsureConfigDir(); err == nil {
			path, perr := cfg.HistoryPath()
			if perr == nil {
				store, err = history.Open(path, cfg.History.MaxEntries)
				if err != nil {
					logger.Warn().Err(err).Msg("run history unavailable")
					store = nil
				}
			}
		}
		if store != nil {
			defer store.Close()
		}
	}

	// Reload scheduler-independent settings when the config file changes.
	if path, perr := config.ConfigPath(); perr == nil {
		watcher, werr := config.NewWatcher(path, 500*time.Millisecond, func(updated *config.Config) {
			logger.Info().Msg("configuration updated, restart to apply provider changes")
		}, logger)
		if werr == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	repl := cli.New(cli.Options{
		Scheduler: scheduler,
		Engine:    engine,
		Runner:    runner,
		Registry:  registry,
		Provider:  client,
		Store:     store,
		Log:       logger,
	})
	if err := repl.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the zerolog logger writing to the log file under the
// config directory. The returned closer flushes the file on exit.
func newLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	path := cfg.Log.Path
	if path == "" {
		dir, derr := config.ConfigDir()
		if derr != nil {
			return zerolog.Nop(), func() {}, derr
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return zerolog.Nop(), func() {}, err
		}
		path = filepath.Join(dir, "forgeshell.log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}

	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return logger, func() { f.Close() }, nil
}
