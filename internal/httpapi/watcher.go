package httpapi

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchIndex watches the index file's parent directory and calls reload
// whenever the index lands, complementing the explicit
// POST /api/v1/reload-index. The directory, not the file, is watched:
// ingestion's rename-into-place pattern replaces the inode, which would
// silently kill a file-level watch. Events are debounced, since one logical
// update (write .tmp, rename, write .meta) fires several fsnotify events.
func watchIndex(ctx context.Context, indexPath string, reload func(context.Context) error, log *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(indexPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	base := filepath.Base(indexPath)
	go runWatchLoop(ctx, watcher, base, reload, log)
	return watcher, nil
}

const debounceWindow = 500 * time.Millisecond

func runWatchLoop(ctx context.Context, watcher *fsnotify.Watcher, indexBase string, reload func(context.Context) error, log *slog.Logger) {
	var timer *time.Timer
	fire := func() {
		reloadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := reload(reloadCtx); err != nil {
			log.Warn("auto_reload_failed", slog.Any("error", err))
			return
		}
		log.Info("auto_reload_succeeded")
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Only the index file and its sidecars matter; ignore articles.db
			// churn sharing the same directory.
			if !strings.HasPrefix(filepath.Base(event.Name), indexBase) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, fire)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("index_watcher_error", slog.Any("error", err))
		}
	}
}
