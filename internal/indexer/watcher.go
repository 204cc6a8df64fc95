package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Refresher rebuilds the indexes.
type Refresher interface {
	Refresh(ctx context.Context) (*Stats, error)
}

// Watcher watches the root directory and triggers a refresh after relevant
// files change.
type Watcher struct {
	discovery    *FileDiscovery
	target       Refresher
	logger       logrus.FieldLogger
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
}

// NewWatcher creates a watcher over every non-ignored directory of the
// discovery root.
func NewWatcher(discovery *FileDiscovery, target Refresher, logger logrus.FieldLogger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		discovery:    discovery,
		target:       target,
		logger:       logger,
		watcher:      fsw,
		debounceTime: debounce,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	if err := w.addDirectoriesRecursively(discovery.RootDir()); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.watch(ctx)
	})
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		started := true
		w.startOnce.Do(func() { started = false })
		if started {
			<-w.doneCh
		}
		w.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	refreshCh := make(chan struct{}, 1)
	changed := make(map[string]bool)

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// New directories are watched even though they are not files
			// to index themselves.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.shouldWatchDirectory(event.Name) {
						if err := w.addDirectoriesRecursively(event.Name); err != nil {
							w.logger.WithError(err).WithField("dir", event.Name).Warn("failed to watch new directory")
						}
					}
					continue
				}
			}

			if !w.shouldProcessEvent(event) {
				continue
			}

			relPath, _ := filepath.Rel(w.discovery.RootDir(), event.Name)
			changed[filepath.ToSlash(relPath)] = true

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case refreshCh <- struct{}{}:
				default:
				}
			})

		case <-refreshCh:
			w.triggerRefresh(ctx, changed)
			changed = make(map[string]bool)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) triggerRefresh(ctx context.Context, changed map[string]bool) {
	if len(changed) == 0 {
		return
	}

	w.logger.WithField("files", len(changed)).Info("refreshing indexes after changes")

	if _, err := w.target.Refresh(ctx); err != nil {
		w.logger.WithError(err).Error("refresh failed")
	}
}

// shouldProcessEvent checks if an event should trigger a refresh.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	relPath, err := filepath.Rel(w.discovery.RootDir(), event.Name)
	if err != nil {
		return false
	}

	_, ok := w.discovery.classify(filepath.ToSlash(relPath))
	return ok
}

// shouldWatchDirectory checks if a directory should be watched.
func (w *Watcher) shouldWatchDirectory(path string) bool {
	relPath, err := filepath.Rel(w.discovery.RootDir(), path)
	if err != nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	return relPath == "." || !w.discovery.shouldIgnore(relPath)
}

// addDirectoriesRecursively adds all directories in the tree to the watcher.
func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	if _, err := os.Stat(rootPath); err != nil {
		return err
	}

	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.WithError(err).WithField("path", path).Warn("error accessing path")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if !w.shouldWatchDirectory(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.WithError(err).WithField("dir", path).Warn("failed to watch directory")
		}
		return nil
	})
}
