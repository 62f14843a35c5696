package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/export"
	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/noteservice"
	"github.com/starford/notemind/internal/session"
)

// Publisher writes notes to a hosted repository.
type Publisher interface {
	Publish(ctx context.Context, repoURL, branch string, notes []models.Note) (export.Report, error)
}

// Handler holds API route handlers.
type Handler struct {
	sess *session.Session
	svc  *noteservice.Service
	pub  Publisher

	repoURL string
	branch  string
}

// NewHandler creates a new Handler. repoURL and branch are the publish
// defaults used when a request leaves them empty.
func NewHandler(sess *session.Session, pub Publisher, repoURL, branch string) *Handler {
	return &Handler{sess: sess, svc: sess.Notes(), pub: pub, repoURL: repoURL, branch: branch}
}

func (h *Handler) owner() string { return h.sess.Owner() }

// ListNotes handles GET /api/notes.
//
//	@Summary		List the owner's notes, most recently updated first
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context(), h.owner())
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetNote(r.Context(), h.owner(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", `"`+noteservice.Version(n)+`"`)
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.CreateNote(r.Context(), h.owner(), models.Note{Title: req.Title, Content: req.Content})
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// SeedNote handles POST /api/notes/seed.
//
//	@Summary		Insert the sample note
//	@Tags			notes
//	@Produce		json
//	@Success		201	{object}	models.Note
//	@Security		BearerAuth
//	@Router			/notes/seed [post]
func (h *Handler) SeedNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Seed(r.Context(), h.owner())
	if err != nil {
		writeError(w, "seed note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ImportNote handles POST /api/notes/import with a Markdown body.
//
//	@Summary		Import a Markdown document as a note
//	@Tags			notes
//	@Accept			plain
//	@Produce		json
//	@Success		201	{object}	models.Note
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/import [post]
func (h *Handler) ImportNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	n, err := h.svc.Import(r.Context(), h.owner(), data)
	if err != nil {
		writeError(w, "import note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Update title and/or content with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"ETag from GET"
//	@Param			body		body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	n, err := h.svc.UpdateNote(r.Context(), h.owner(), chi.URLParam(r, "id"),
		models.NoteFields{Title: req.Title, Content: req.Content}, ifMatch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	w.Header().Set("ETag", `"`+noteservice.Version(n)+`"`)
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note with its tasks and attachments
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), h.owner(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeNote handles POST /api/notes/{id}/analyze.
//
//	@Summary		Run AI analysis and apply it to the note
//	@Tags			analysis
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	AnalyzeResponse
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/analyze [post]
func (h *Handler) AnalyzeNote(w http.ResponseWriter, r *http.Request) {
	res, err := h.sess.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "analyze note", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Result: res, Status: apperr.StatusMessage(nil)})
}

// ChatNote handles POST /api/notes/{id}/chat.
//
//	@Summary		Ask a question about a note
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		ChatRequest	true	"Conversation"
//	@Success		200		{object}	ChatResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/chat [post]
func (h *Handler) ChatNote(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := h.sess.Chat(r.Context(), chi.URLParam(r, "id"), req.History, req.Prompt)
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// ListNoteTasks handles GET /api/notes/{id}/tasks.
//
//	@Summary		List a note's tasks
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path	string	true	"Note id"
//	@Success		200	{array}	models.Task
//	@Security		BearerAuth
//	@Router			/notes/{id}/tasks [get]
func (h *Handler) ListNoteTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context(), h.owner(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ToggleTask handles PATCH /api/tasks/{id}.
//
//	@Summary		Mark a task completed or open
//	@Tags			tasks
//	@Accept			json
//	@Param			id		path	string				true	"Task id"
//	@Param			body	body	ToggleTaskRequest	true	"Completion flag"
//	@Success		204		"Task updated"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [patch]
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	var req ToggleTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ToggleTask(r.Context(), h.owner(), chi.URLParam(r, "id"), req.Completed); err != nil {
		writeError(w, "toggle task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCalendar handles GET /api/calendar.
//
//	@Summary		List events by date
//	@Tags			calendar
//	@Produce		json
//	@Success		200	{array}	models.Event
//	@Security		BearerAuth
//	@Router			/calendar [get]
func (h *Handler) ListCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), h.owner())
	if err != nil {
		writeError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// CreateCalendarEvent handles POST /api/calendar.
//
//	@Summary		Create a calendar event
//	@Tags			calendar
//	@Accept			json
//	@Produce		json
//	@Param			body	body		noteservice.EventInput	true	"Event"
//	@Success		201		{object}	models.Event
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar [post]
func (h *Handler) CreateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	var req noteservice.EventInput
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.CreateEvent(r.Context(), h.owner(), req)
	if err != nil {
		writeError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// DeleteCalendarEvent handles DELETE /api/calendar/{id}.
//
//	@Summary		Delete a calendar event
//	@Tags			calendar
//	@Param			id	path	string	true	"Event id"
//	@Success		204	"Event deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar/{id} [delete]
func (h *Handler) DeleteCalendarEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), h.owner(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
