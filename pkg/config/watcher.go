// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Reloader is what a Watcher refreshes; *Manager satisfies it.
type Reloader interface {
	Reload() error
}

// Watcher reloads the configuration when its file changes on disk, so a
// running server picks up new API keys and tuning without a restart.
type Watcher struct {
	target  Reloader
	path    string
	watcher *fsnotify.Watcher

	// debounceDelay coalesces the burst of events editors emit on save.
	debounceDelay time.Duration
	logger        zerolog.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(target Reloader, path string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		target:        target,
		path:          path,
		watcher:       fw,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "config.watcher").Logger(),
	}, nil
}

// Start watches until ctx is canceled. It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify watches directories; editors often replace the file.
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("Failed to watch config directory")
		return err
	}
	w.logger.Info().Str("file", w.path).Msg("Watching config file")

	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.logger.Debug().Str("op", event.Op.String()).Msg("Config file changed")
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		if err := w.target.Reload(); err != nil {
			// The previous configuration stays active.
			w.logger.Error().Err(err).Msg("Failed to reload config")
			return
		}
		w.logger.Info().Msg("Config reloaded")
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
