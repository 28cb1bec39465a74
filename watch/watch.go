// Package watch reruns a callback when any of a set of files changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce absorbs editors writing a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Run watches paths until ctx is done, calling onChange with the changed
// paths once events settle for the debounce delay. onChange runs on the
// watching goroutine, so calls never overlap. Errors from onChange are logged
// and do not stop the watch.
func Run(ctx context.Context, logger *zap.Logger, paths []string, debounce time.Duration, onChange func(ctx context.Context, changed []string) error) error {
	if logger == nil {
		return fmt.Errorf("nil logger is invalid")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger = logger.With(zap.String("component", "watch"))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched instead of files so that atomic saves
	// (write to temp, rename over) keep being observed.
	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("File changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			pending[filepath.Clean(event.Name)] = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			if err := onChange(ctx, changed); err != nil {
				logger.Error("Rebuild failed", zap.Error(err))
			}
		}
	}
}
