package assets

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates cached files under dir when they change on disk, so a
// Retry after fixing a broken font picks up the new file. It blocks until ctx
// is done.
func (l *Loader) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating asset watcher: %w", err)
	}
	defer w.Close()

	// fsnotify is not recursive; add every directory under dir.
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	slog.InfoContext(ctx, "watching assets", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			l.handleEvent(ctx, dir, w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "asset watcher error", "error", err)
		}
	}
}

func (l *Loader) handleEvent(ctx context.Context, dir string, w *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.Add(ev.Name)
			return
		}
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(dir, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	l.Invalidate(rel)
	slog.DebugContext(ctx, "asset changed, cache entry dropped", "file", rel, "op", ev.Op.String())
}
