// Package attachments keeps image rows and stored blobs consistent: rows
// whose blob vanished are dropped, and blobs left behind by deleted notes
// are removed.
package attachments

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/storage"
)

// DefaultGrace protects blobs whose row may not be inserted yet.
const DefaultGrace = time.Minute

// Rows is the slice of the store used for reconciliation.
type Rows interface {
	AllImages(ctx context.Context) ([]models.Image, error)
	DeleteImage(ctx context.Context, id string) error
}

// Report summarizes one reconciliation pass.
type Report struct {
	RowsRemoved  []string `json:"rows_removed"`
	BlobsRemoved []string `json:"blobs_removed"`
}

// Reconciler compares image rows with stored blobs.
type Reconciler struct {
	rows  Rows
	blobs storage.Provider
	grace time.Duration
	log   *slog.Logger
	now   func() time.Time
}

// NewReconciler builds a Reconciler. A non-positive grace uses DefaultGrace.
func NewReconciler(rows Rows, blobs storage.Provider, grace time.Duration, log *slog.Logger) *Reconciler {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{rows: rows, blobs: blobs, grace: grace, log: log, now: time.Now}
}

// Sync runs one pass:
//   - rows whose blob is missing are deleted
//   - blobs with no row and older than the grace period are deleted
func (r *Reconciler) Sync(ctx context.Context) (Report, error) {
	rep := Report{RowsRemoved: []string{}, BlobsRemoved: []string{}}

	metas, err := r.blobs.List("")
	if err != nil {
		return rep, err
	}
	rows, err := r.rows.AllImages(ctx)
	if err != nil {
		return rep, err
	}

	onDisk := make(map[string]models.BlobMetadata, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = m
	}
	referenced := make(map[string]struct{}, len(rows))
	for _, img := range rows {
		referenced[img.URL] = struct{}{}
		if _, ok := onDisk[img.URL]; ok {
			continue
		}
		if err := r.rows.DeleteImage(ctx, img.ID); err != nil {
			r.log.Warn("attachments: drop row failed", slog.String("id", img.ID), slog.String("error", err.Error()))
			continue
		}
		r.log.Debug("attachments: dropped row without blob", slog.String("id", img.ID), slog.String("path", img.URL))
		rep.RowsRemoved = append(rep.RowsRemoved, img.ID)
	}

	cutoff := r.now().Add(-r.grace)
	for path, m := range onDisk {
		if _, ok := referenced[path]; ok || m.UpdatedAt.After(cutoff) {
			continue
		}
		if err := r.blobs.Delete(path); err != nil {
			r.log.Warn("attachments: delete orphan failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		r.log.Debug("attachments: removed orphan blob", slog.String("path", path))
		rep.BlobsRemoved = append(rep.BlobsRemoved, path)
	}
	return rep, nil
}
