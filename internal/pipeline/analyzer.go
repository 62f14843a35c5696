package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

// Extractor runs structured extraction over note text.
type Extractor interface {
	Analyze(ctx context.Context, text string) (*models.AnalysisResult, error)
}

// NoteReader loads a single note.
type NoteReader interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
}

// Analyzer runs extraction then reconcile for one note at a time per note.
// A request for a note whose analysis is in flight is rejected with
// apperr.ErrAnalysisInProgress rather than queued.
type Analyzer struct {
	notes   NoteReader
	extract Extractor
	rec     *Reconciler
	current func(owner, noteID string) bool
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithRelevance installs a check run after extraction and before any write.
// Returning false discards the result with apperr.ErrStale.
func WithRelevance(fn func(owner, noteID string) bool) AnalyzerOption {
	return func(a *Analyzer) { a.current = fn }
}

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.log = l }
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(notes NoteReader, extract Extractor, rec *Reconciler, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		notes:    notes,
		extract:  extract,
		rec:      rec,
		log:      slog.Default(),
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// InFlight reports whether noteID is being analyzed.
func (a *Analyzer) InFlight(noteID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inflight[noteID]
	return ok
}

func (a *Analyzer) acquire(noteID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight[noteID]; busy {
		return false
	}
	a.inflight[noteID] = struct{}{}
	return true
}

func (a *Analyzer) release(noteID string) {
	a.mu.Lock()
	delete(a.inflight, noteID)
	a.mu.Unlock()
}

// Analyze extracts from the note's current content and reconciles the
// result. Extraction happens before any write, so an extraction failure
// leaves the note untouched.
func (a *Analyzer) Analyze(ctx context.Context, owner, noteID string) (*models.AnalysisResult, error) {
	if !a.acquire(noteID) {
		return nil, apperr.ErrAnalysisInProgress
	}
	defer a.release(noteID)

	note, err := a.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.OwnerID != owner {
		return nil, apperr.ErrNotFound
	}

	result, err := a.extract.Analyze(ctx, note.Content)
	if err != nil {
		return nil, err
	}

	if err := a.checkCurrent(ctx, owner, noteID); err != nil {
		a.log.Warn("analysis discarded",
			slog.String("note", noteID),
			slog.String("error", err.Error()))
		return nil, err
	}

	if err := a.rec.Reconcile(ctx, owner, noteID, result); err != nil {
		return result, err
	}
	return result, nil
}

// checkCurrent re-reads the note so a result is never applied to a note
// that was deleted or reassigned while the extraction was running.
func (a *Analyzer) checkCurrent(ctx context.Context, owner, noteID string) error {
	if a.current != nil && !a.current(owner, noteID) {
		return apperr.ErrStale
	}
	note, err := a.notes.GetNote(ctx, noteID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrStale
	}
	if err != nil {
		return err
	}
	if note.OwnerID != owner {
		return apperr.ErrStale
	}
	return nil
}
