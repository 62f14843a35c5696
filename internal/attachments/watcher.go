package attachments

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notemind/internal/storage"
)

const settleDelay = 200 * time.Millisecond

// EventCallback is called with the report of every watcher-driven pass
// that changed something.
type EventCallback func(Report)

// Watch runs Sync once, then watches the blob root and re-runs Sync shortly
// after any blob is removed or renamed, until ctx is cancelled. Directories
// created at runtime are added to the watch list.
func (r *Reconciler) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := r.blobs.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	r.log.Info("attachments: watching", slog.String("root", root))
	r.pass(ctx, cb)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(settleDelay)
			timerCh = timer.C
			return
		}
		timer.Reset(settleDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.log.Info("attachments: watcher stopped")
			return nil

		case <-timerCh:
			r.pass(ctx, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if storage.IsTemp(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						r.log.Warn("attachments: watch dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Error("attachments: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (r *Reconciler) pass(ctx context.Context, cb EventCallback) {
	rep, err := r.Sync(ctx)
	if err != nil {
		r.log.Warn("attachments: sync failed", slog.String("error", err.Error()))
		return
	}
	if cb != nil && (len(rep.RowsRemoved) > 0 || len(rep.BlobsRemoved) > 0) {
		cb(rep)
	}
}

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
