// Package watcher reloads configuration when the config file changes on
// disk, so logging levels can be adjusted without a restart.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/lightstick/internal/config"
)

// debounceDelay coalesces the burst of events editors emit on save.
const debounceDelay = 250 * time.Millisecond

// Watcher watches one config file and invokes the callback with each
// successfully reloaded configuration.
type Watcher struct {
	path     string
	onReload func(*config.Config)
	logger   *slog.Logger
}

// New creates a config watcher. onReload runs on the watcher goroutine.
func New(path string, logger *slog.Logger, onReload func(*config.Config)) *Watcher {
	return &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger.With(slog.String("component", "config-watcher")),
	}
}

// Run blocks watching for changes until the context is canceled. Editors
// replace files rather than writing in place, so the parent directory is
// watched and events are filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerCh = timer.C
			} else {
				timer.Reset(debounceDelay)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration",
			slog.String("error", err.Error()))
		return
	}
	w.logger.Info("configuration reloaded", slog.String("path", w.path))
	w.onReload(cfg)
}
