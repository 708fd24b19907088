package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/logger"
)

// Watch reloads path whenever it is written and calls fn with the new config.
// Reloads start from Default so removed keys fall back to their defaults, and flags
// still override the file. Files that fail to parse or validate are logged and
// skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := reload(path)
			if err != nil {
				logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// reload reads path with the same priority as Load: defaults < file < flags.
func reload(path string) (*Config, error) {
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		return nil, err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rejected: %w", err)
	}
	return cfg, nil
}
