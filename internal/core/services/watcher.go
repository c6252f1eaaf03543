package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// DefaultWatchDebounce is the quiet period after the last file event before
// a discovery scan is enqueued.
const DefaultWatchDebounce = 2 * time.Second

// Watcher enqueues a discovery scan when supported files under the
// documents directory are created or written. Bursts of events collapse
// into one scan.
type Watcher struct {
	root     string
	queue    Enqueuer
	debounce time.Duration
}

// NewWatcher creates a watcher over root. A debounce of zero uses
// DefaultWatchDebounce.
func NewWatcher(root string, queue Enqueuer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{root: root, queue: queue, debounce: debounce}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("documents directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("documents directory %s: not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	logger.Info("watcher: watching %s", w.root)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(fsw, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)

		case <-fire:
			fire = nil
			if err := w.queue.Enqueue(ctx, domain.DiscoverTask{}); err != nil {
				if errors.Is(err, domain.ErrQueueClosed) {
					return nil
				}
				logger.Warn("watcher: enqueueing discovery: %v", err)
				continue
			}
			logger.Debug("watcher: changes detected, discovery queued")
		}
	}
}

// handleEvent reports whether an event should trigger discovery. New
// directories are added to the watch set.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if w.isHidden(event.Name) {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(fsw, event.Name); err != nil {
				logger.Warn("watcher: %v", err)
			}
			return true
		}
		return false
	}

	return domain.FileTypeFromPath(event.Name) != ""
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.isHidden(path) {
			return fs.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether any path element below root starts with a dot.
func (w *Watcher) isHidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
