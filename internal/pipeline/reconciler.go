// Package pipeline applies AI analysis results to persisted note state.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Writer is the slice of the store the reconciler writes through.
type Writer interface {
	ApplyAnalysis(ctx context.Context, id string, r *models.AnalysisResult, embedding []float32) error
	DeleteTasksForNote(ctx context.Context, noteID string) error
	InsertTasks(ctx context.Context, owner, noteID string, texts []string) ([]models.Task, error)
	InsertEvents(ctx context.Context, owner string, events []models.Event) ([]models.Event, error)
}

// RefreshFunc rebuilds the workspace projection from the store.
type RefreshFunc func(ctx context.Context) error

// Reconciler applies an AnalysisResult to a note as five sequential steps:
// embed, note, tasks, events, refresh.
//
// There is no transaction across steps. A failure stops the pipeline and is
// returned as *apperr.ReconcileError naming the failing step; earlier steps
// stay applied. For example a failure in the tasks step leaves the note with
// fresh analysis fields and its previous (or partially deleted) task list.
// Re-running the analysis is the recovery path.
//
// Events are appended, never deduplicated: reconciling the same result twice
// doubles the note's events while its tasks are replaced.
type Reconciler struct {
	embed   Embedder
	store   Writer
	refresh RefreshFunc
	log     *slog.Logger
}

// NewReconciler builds a Reconciler. refresh may be nil.
func NewReconciler(embed Embedder, store Writer, refresh RefreshFunc, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{embed: embed, store: store, refresh: refresh, log: log}
}

// Reconcile runs every step for noteID in order.
func (r *Reconciler) Reconcile(ctx context.Context, owner, noteID string, result *models.AnalysisResult) error {
	result.Normalize()
	fail := func(step string, err error) error {
		r.log.Error("reconcile failed",
			slog.String("note", noteID),
			slog.String("step", step),
			slog.String("error", err.Error()))
		return &apperr.ReconcileError{NoteID: noteID, Step: step, Err: err}
	}

	embedding, err := r.embed.Embed(ctx, result.EmbeddingText())
	if err != nil {
		return fail(apperr.StepEmbed, err)
	}

	if err := r.store.ApplyAnalysis(ctx, noteID, result, embedding); err != nil {
		return fail(apperr.StepNote, err)
	}

	if err := r.store.DeleteTasksForNote(ctx, noteID); err != nil {
		return fail(apperr.StepTasks, err)
	}
	if len(result.ActionItems) > 0 {
		if _, err := r.store.InsertTasks(ctx, owner, noteID, result.ActionItems); err != nil {
			return fail(apperr.StepTasks, err)
		}
	}

	if len(result.SuggestedEvents) > 0 {
		events := make([]models.Event, 0, len(result.SuggestedEvents))
		for _, se := range result.SuggestedEvents {
			origin := noteID
			events = append(events, models.Event{
				NoteID:      &origin,
				Title:       se.Title,
				Description: se.Description,
				Date:        se.Date,
			})
		}
		if _, err := r.store.InsertEvents(ctx, owner, events); err != nil {
			return fail(apperr.StepEvents, err)
		}
	}

	if r.refresh != nil {
		if err := r.refresh(ctx); err != nil {
			return fail(apperr.StepRefresh, err)
		}
	}

	r.log.Info("note reconciled",
		slog.String("note", noteID),
		slog.Int("tasks", len(result.ActionItems)),
		slog.Int("events", len(result.SuggestedEvents)))
	return nil
}
