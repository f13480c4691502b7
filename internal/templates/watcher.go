package templates

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-driven registry change.
// kind is one of "loaded", "removed", "reloaded".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on dir and keeps the registry's
// directory templates in sync until ctx is cancelled.
//
// Renames are handled with a debounced full reload of dir, since fsnotify
// only reports the old path.
func Watch(ctx context.Context, reg *Registry, dir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return err
	}

	logger.Info("templates watcher: started", slog.String("dir", dir))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("templates watcher: stopped")
			return nil

		case <-reloadCh:
			n, err := reg.LoadDir(dir, logger)
			if err != nil {
				logger.Warn("templates watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("templates watcher: reloaded", slog.Int("count", n))
			if cb != nil {
				cb("reloaded", "")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, path); addErr != nil {
						logger.Warn("templates watcher: add new dir failed",
							slog.String("path", path),
							slog.String("error", addErr.Error()))
					}
					scheduleReload()
					continue
				}
			}

			if !isTemplateFile(path) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				t, putErr := reg.Put(path)
				if putErr != nil {
					logger.Warn("templates watcher: load failed", slog.String("path", path), slog.String("error", putErr.Error()))
					continue
				}
				logger.Debug("templates watcher: loaded", slog.String("path", path), slog.String("template_id", t.ID))
				if cb != nil {
					cb("loaded", t.ID)
				}

			case ev.Op&fsnotify.Remove != 0:
				if id, ok := reg.Remove(path); ok {
					logger.Debug("templates watcher: removed", slog.String("path", path), slog.String("template_id", id))
					if cb != nil {
						cb("removed", id)
					}
				}

			case ev.Op&fsnotify.Rename != 0:
				reg.Remove(path)
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("templates watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
