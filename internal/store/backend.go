package store

import (
	"context"
	"time"

	"github.com/starford/notemind/internal/models"
)

// Backend is the full row-level surface of the store.
// Consumers should depend on this (or a narrower) interface rather than on
// *Store so they can be tested with fakes.
type Backend interface {
	CreateNote(ctx context.Context, owner string, n models.Note) (*models.Note, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, owner string) ([]models.Note, error)
	UpdateNoteFields(ctx context.Context, id string, f models.NoteFields) (time.Time, error)
	ApplyAnalysis(ctx context.Context, id string, r *models.AnalysisResult, embedding []float32) error
	DeleteNote(ctx context.Context, id string) error

	DeleteTasksForNote(ctx context.Context, noteID string) error
	InsertTasks(ctx context.Context, owner, noteID string, texts []string) ([]models.Task, error)
	ListTasks(ctx context.Context, owner string) ([]models.Task, error)
	ListTasksForNote(ctx context.Context, noteID string) ([]models.Task, error)
	SetTaskCompleted(ctx context.Context, id string, completed bool) error

	InsertEvents(ctx context.Context, owner string, events []models.Event) ([]models.Event, error)
	CreateEvent(ctx context.Context, owner string, e models.Event) (*models.Event, error)
	ListEvents(ctx context.Context, owner string) ([]models.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	InsertImage(ctx context.Context, owner, noteID, url string) (*models.Image, error)
	GetImage(ctx context.Context, id string) (*models.Image, error)
	ListImages(ctx context.Context, noteID string) ([]models.Image, error)
	AllImages(ctx context.Context) ([]models.Image, error)
	DeleteImage(ctx context.Context, id string) error

	Close() error
}

// Verify *Store satisfies Backend at compile time.
var _ Backend = (*Store)(nil)
