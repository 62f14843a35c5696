// Package noteservice performs note, task, event and attachment CRUD on
// behalf of one owner. Rows belonging to another owner are reported as not
// found.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/parser"
	"github.com/starford/notemind/internal/storage"
	"github.com/starford/notemind/internal/store"
)

// Sample note inserted by Seed.
const (
	seedTitle    = "Sample Note"
	seedContent  = "This is a sample note confirming the workspace can write data. This is important."
	seedCategory = "Development"
)

var (
	clockRe    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// EventInput is a calendar entry created directly by the user.
type EventInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"event_date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	NoteID      *string `json:"note_id"`
}

// Validate checks required fields and formats.
func (in EventInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Date, validation.Required, validation.Date(models.DateLayout)),
		validation.Field(&in.StartTime, validation.Match(clockRe)),
		validation.Field(&in.EndTime, validation.Match(clockRe)),
	)
}

// Service coordinates the store and the blob storage.
type Service struct {
	store store.Backend
	blobs storage.Provider
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a new note service.
func NewService(st store.Backend, blobs storage.Provider, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, blobs: blobs, log: log, now: time.Now}
}

// Version is the optimistic-concurrency token of a note.
func Version(n *models.Note) string {
	return n.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// ListNotes returns the owner's notes, most recently updated first.
func (s *Service) ListNotes(ctx context.Context, owner string) ([]models.Note, error) {
	return s.store.ListNotes(ctx, owner)
}

// GetNote returns one of the owner's notes.
func (s *Service) GetNote(ctx context.Context, owner, id string) (*models.Note, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.OwnerID != owner {
		return nil, apperr.ErrNotFound
	}
	return n, nil
}

// CreateNote inserts a note. Blank title and category take the defaults.
func (s *Service) CreateNote(ctx context.Context, owner string, n models.Note) (*models.Note, error) {
	return s.store.CreateNote(ctx, owner, n)
}

// Seed inserts the sample note.
func (s *Service) Seed(ctx context.Context, owner string) (*models.Note, error) {
	return s.store.CreateNote(ctx, owner, models.Note{
		Title:    seedTitle,
		Content:  seedContent,
		Tags:     []string{"test", "demo"},
		Category: seedCategory,
	})
}

// UpdateNote writes the non-nil fields. A non-empty ifMatch must equal the
// note's current Version or apperr.ErrConflict is returned.
func (s *Service) UpdateNote(ctx context.Context, owner, id string, f models.NoteFields, ifMatch string) (*models.Note, error) {
	n, err := s.GetNote(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != Version(n) {
		return nil, apperr.ErrConflict
	}
	if f.Title == nil && f.Content == nil {
		return n, nil
	}
	if _, err := s.store.UpdateNoteFields(ctx, id, f); err != nil {
		return nil, err
	}
	return s.store.GetNote(ctx, id)
}

// DeleteNote removes the note with its tasks and attachment rows, then
// deletes the attachment blobs. Blob failures are logged, not returned;
// the attachments reconciler collects leftovers.
func (s *Service) DeleteNote(ctx context.Context, owner, id string) error {
	if _, err := s.GetNote(ctx, owner, id); err != nil {
		return err
	}
	images, err := s.store.ListImages(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	for _, img := range images {
		if err := s.blobs.Delete(img.URL); err != nil {
			s.log.Warn("delete attachment blob failed",
				slog.String("path", img.URL), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Import parses a Markdown document and stores it as a new note.
func (s *Service) Import(ctx context.Context, owner string, data []byte) (*models.Note, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("noteservice: import: %w", err)
	}
	if strings.TrimSpace(res.Title) == "" && strings.TrimSpace(res.Body) == "" {
		return nil, apperr.ErrEmptyInput
	}
	return s.store.CreateNote(ctx, owner, res.Note())
}

// ListTasks returns the owner's tasks, or only those of noteID when set.
func (s *Service) ListTasks(ctx context.Context, owner, noteID string) ([]models.Task, error) {
	if noteID == "" {
		return s.store.ListTasks(ctx, owner)
	}
	if _, err := s.GetNote(ctx, owner, noteID); err != nil {
		return nil, err
	}
	return s.store.ListTasksForNote(ctx, noteID)
}

// ToggleTask sets the completion flag of one of the owner's tasks.
func (s *Service) ToggleTask(ctx context.Context, owner, id string, completed bool) error {
	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.ID == id {
			return s.store.SetTaskCompleted(ctx, id, completed)
		}
	}
	return apperr.ErrNotFound
}

// ListEvents returns the owner's events by date.
func (s *Service) ListEvents(ctx context.Context, owner string) ([]models.Event, error) {
	return s.store.ListEvents(ctx, owner)
}

// CreateEvent validates and inserts a calendar entry. A set NoteID must
// name one of the owner's notes.
func (s *Service) CreateEvent(ctx context.Context, owner string, in EventInput) (*models.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.NoteID != nil {
		if _, err := s.GetNote(ctx, owner, *in.NoteID); err != nil {
			return nil, err
		}
	}
	return s.store.CreateEvent(ctx, owner, models.Event{
		NoteID:      in.NoteID,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	})
}

// DeleteEvent removes one of the owner's events.
func (s *Service) DeleteEvent(ctx context.Context, owner, id string) error {
	events, err := s.store.ListEvents(ctx, owner)
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.ID == id {
			return s.store.DeleteEvent(ctx, id)
		}
	}
	return apperr.ErrNotFound
}

// UploadImage stores a blob at {owner}/{note}/{unix-ms}-{name} and records
// it against the note.
func (s *Service) UploadImage(ctx context.Context, owner, noteID, name string, data []byte) (*models.Image, error) {
	if _, err := s.GetNote(ctx, owner, noteID); err != nil {
		return nil, err
	}
	name = unsafeName.ReplaceAllString(path.Base(name), "_")
	if name == "" || name == "." || name == "_" {
		name = "image"
	}
	p := fmt.Sprintf("%s/%s/%d-%s", owner, noteID, s.now().UnixMilli(), name)
	if err := s.blobs.Write(p, data); err != nil {
		return nil, fmt.Errorf("noteservice: write blob: %w", err)
	}
	img, err := s.store.InsertImage(ctx, owner, noteID, p)
	if err != nil {
		if delErr := s.blobs.Delete(p); delErr != nil {
			s.log.Warn("remove unrecorded blob failed", slog.String("path", p), slog.String("error", delErr.Error()))
		}
		return nil, err
	}
	return img, nil
}

// ListImages returns the attachments of one of the owner's notes.
func (s *Service) ListImages(ctx context.Context, owner, noteID string) ([]models.Image, error) {
	if _, err := s.GetNote(ctx, owner, noteID); err != nil {
		return nil, err
	}
	return s.store.ListImages(ctx, noteID)
}

// ReadImage returns an attachment row and its blob.
func (s *Service) ReadImage(ctx context.Context, owner, id string) (*models.Image, []byte, error) {
	img, err := s.ownedImage(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Read(img.URL)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

// DeleteImage removes the attachment row, then its blob.
func (s *Service) DeleteImage(ctx context.Context, owner, id string) error {
	img, err := s.ownedImage(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteImage(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(img.URL); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn("delete attachment blob failed", slog.String("path", img.URL), slog.String("error", err.Error()))
	}
	return nil
}

func (s *Service) ownedImage(ctx context.Context, owner, id string) (*models.Image, error) {
	img, err := s.store.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	if img.OwnerID != owner {
		return nil, apperr.ErrNotFound
	}
	return img, nil
}
