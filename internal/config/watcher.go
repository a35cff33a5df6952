// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// ReloadFunc receives the freshly loaded configuration after a change.
type ReloadFunc func(cfg *Config)

// Watcher reloads the configuration file when it changes on disk.
// Editor save patterns often produce bursts of write events, so changes
// are debounced before reloading.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadFunc
	log      zerolog.Logger
	cancel   context.CancelFunc
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, debounce time.Duration, onReload ReloadFunc, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		debounce: debounce,
		onReload: onReload,
		log:      log.With().Str("component", "config-watcher").Logger(),
	}, nil
}

// Watch starts watching. The parent directory is watched rather than the
// file itself so atomic rename-replace saves are still observed.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.processEvents(ctx)
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watch error")

		case <-fire:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload failed, keeping previous config")
		return
	}
	w.log.Info().Str("path", w.path).Msg("config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
