// Package apperr defines the error taxonomy shared across notemind packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyExists      = errors.New("already exists")
	ErrEmptyInput         = errors.New("content is empty")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrStale              = errors.New("result no longer targets a current note")
	ErrInvalidField       = errors.New("invalid field")
	ErrInvalidRepoURL     = errors.New("invalid repository url")
	ErrSessionClosed      = errors.New("session closed")
)

// ExtractionError reports a failed or non-conforming structured extraction.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return "extraction: " + e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports a failed embedding call.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding: " + e.Err.Error() }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// Reconcile steps, in execution order.
const (
	StepEmbed   = "embed"
	StepNote    = "note"
	StepTasks   = "tasks"
	StepEvents  = "events"
	StepRefresh = "refresh"
)

// ReconcileError reports the first failing reconcile step. Steps completed
// before Step are not rolled back.
type ReconcileError struct {
	NoteID string
	Step   string
	Err    error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s: step %s: %v", e.NoteID, e.Step, e.Err)
}
func (e *ReconcileError) Unwrap() error { return e.Err }

// PersistError reports a failed autosave commit. The draft is kept.
type PersistError struct {
	NoteID string
	Fields []string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s %v: %v", e.NoteID, e.Fields, e.Err)
}
func (e *PersistError) Unwrap() error { return e.Err }

// SyncError reports a failed publish of a single note.
type SyncError struct {
	NoteID string
	Path   string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s (%s): %v", e.NoteID, e.Path, e.Err)
}
func (e *SyncError) Unwrap() error { return e.Err }

// StatusMessage maps an error to the short status line shown to the user.
func StatusMessage(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		extractErr   *ExtractionError
		embedErr     *EmbeddingError
		reconcileErr *ReconcileError
		persistErr   *PersistError
		syncErr      *SyncError
	)
	switch {
	case errors.As(err, &reconcileErr) && reconcileErr.Step != StepEmbed:
		return "Analysis partly applied (failed at " + reconcileErr.Step + ")"
	case errors.Is(err, ErrEmptyInput):
		return "Note is empty, nothing to analyze"
	case errors.Is(err, ErrAnalysisInProgress):
		return "Analysis already running for this note"
	case errors.Is(err, ErrStale):
		return "Note changed while analyzing, result discarded"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrInvalidRepoURL):
		return "Repository URL is not valid"
	case errors.As(err, &extractErr):
		return "Analysis failed"
	case errors.As(err, &embedErr):
		return "Embedding failed"
	case errors.As(err, &persistErr):
		return "Not saved"
	case errors.As(err, &syncErr):
		return "Publish failed for " + syncErr.Path
	default:
		return "Something went wrong"
	}
}
