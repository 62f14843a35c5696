package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notemind/internal/autosave"
	"github.com/starford/notemind/internal/export"
	"github.com/starford/notemind/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Weekly plan"`
	Content string `json:"content" example:"Meet Alice on Friday"`
}

// UpdateNoteRequest is a partial note update. Absent fields are untouched.
type UpdateNoteRequest struct {
	Title   *string `json:"title,omitempty" example:"Weekly plan"`
	Content *string `json:"content,omitempty" example:"Meet Alice on Friday"`
}

// Validate requires at least one field.
func (r UpdateNoteRequest) Validate() error {
	if r.Title == nil && r.Content == nil {
		return validation.Errors{"content": validation.ErrRequired}
	}
	return nil
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// ChatRequest asks a question about a note.
type ChatRequest struct {
	History []models.ChatMessage `json:"history"`
	Prompt  string               `json:"prompt" example:"What should I do first?" validate:"required"`
}

// Validate validates the chat request.
func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prompt, validation.Required),
		validation.Field(&r.History, validation.Each(validation.By(validChatMessage))),
	)
}

func validChatMessage(v any) error {
	m, _ := v.(models.ChatMessage)
	return validation.Validate(m.Role, validation.In("user", "model", "assistant"))
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	Reply string `json:"reply" validate:"required"`
}

// AnalyzeResponse reports a completed analysis.
type AnalyzeResponse struct {
	Result *models.AnalysisResult `json:"result"`
	Status string                 `json:"status" example:"ok"`
}

// ToggleTaskRequest sets a task's completion flag.
type ToggleTaskRequest struct {
	Completed bool `json:"completed"`
}

// OpenNoteRequest selects the note being edited.
type OpenNoteRequest struct {
	NoteID string `json:"note_id" validate:"required"`
}

// Validate validates the open request.
func (r OpenNoteRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.NoteID, validation.Required))
}

// EditRequest changes one field of the open note's draft.
type EditRequest struct {
	Field string `json:"field" example:"content" validate:"required"`
	Value string `json:"value"`
}

// Validate validates the edit request.
func (r EditRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Field, validation.Required, validation.In(autosave.FieldTitle, autosave.FieldContent)),
	)
}

// DraftResponse is the editing state of the open note.
type DraftResponse struct {
	Draft     autosave.Draft  `json:"draft"`
	Status    autosave.Status `json:"status" example:"saved"`
	Error     string          `json:"error,omitempty"`
	LastSaved *time.Time      `json:"last_saved,omitempty"`
}

// WorkspaceResponse describes the projection.
type WorkspaceResponse struct {
	Version     uint64    `json:"version" example:"7"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// PublishRequest publishes notes to a repository. Empty fields fall back to
// the configured defaults; empty NoteIDs publishes every note.
type PublishRequest struct {
	RepoURL string   `json:"repo_url" example:"https://github.com/me/notes"`
	Branch  string   `json:"branch" example:"main"`
	NoteIDs []string `json:"note_ids"`
}

// PublishFailure is one note that could not be published.
type PublishFailure struct {
	NoteID string `json:"note_id"`
	Path   string `json:"path"`
	Error  string `json:"error"`
}

// PublishResponse summarises a publish batch.
type PublishResponse struct {
	Published []export.Published `json:"published"`
	Failed    []PublishFailure   `json:"failed"`
}

// PreviewResponse is the HTML rendering of a note.
type PreviewResponse struct {
	Path     string `json:"path" example:"notes/weekly_plan.md"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}
