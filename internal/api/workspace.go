package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notemind/internal/models"
)

// OpenNote handles POST /api/session/open.
//
//	@Summary		Make a note the editing target
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenNoteRequest	true	"Note to open"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/open [post]
func (h *Handler) OpenNote(w http.ResponseWriter, r *http.Request) {
	var req OpenNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.sess.OpenNote(r.Context(), req.NoteID)
	if err != nil {
		writeError(w, "open note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// EditDraft handles PUT /api/session/draft.
//
//	@Summary		Edit the open note; saved after a quiet window
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditRequest	true	"Field and value"
//	@Success		202		{object}	DraftResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/draft [put]
func (h *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sess.Edit(req.Field, req.Value); err != nil {
		writeError(w, "edit draft", err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.draft())
}

// GetDraft handles GET /api/session/draft.
//
//	@Summary		Get the open note's draft and save status
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	DraftResponse
//	@Security		BearerAuth
//	@Router			/session/draft [get]
func (h *Handler) GetDraft(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.draft())
}

// FlushDraft handles POST /api/session/flush.
//
//	@Summary		Save pending edits now
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	DraftResponse
//	@Security		BearerAuth
//	@Router			/session/flush [post]
func (h *Handler) FlushDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Flush(r.Context()); err != nil {
		writeError(w, "flush draft", err)
		return
	}
	writeJSON(w, http.StatusOK, h.draft())
}

func (h *Handler) draft() DraftResponse {
	status, err := h.sess.SaveStatus()
	resp := DraftResponse{Draft: h.sess.Draft(), Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	if saved := h.sess.LastSaved(); !saved.IsZero() {
		resp.LastSaved = &saved
	}
	return resp
}

// Workspace handles GET /api/workspace.
//
//	@Summary		Projection version and refresh time
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	WorkspaceResponse
//	@Security		BearerAuth
//	@Router			/workspace [get]
func (h *Handler) Workspace(w http.ResponseWriter, _ *http.Request) {
	st := h.sess.State()
	writeJSON(w, http.StatusOK, WorkspaceResponse{Version: st.Version(), RefreshedAt: st.RefreshedAt()})
}

// RefreshWorkspace handles POST /api/workspace/refresh.
//
//	@Summary		Rebuild the projection from the store
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	WorkspaceResponse
//	@Security		BearerAuth
//	@Router			/workspace/refresh [post]
func (h *Handler) RefreshWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Refresh(r.Context()); err != nil {
		writeError(w, "refresh workspace", err)
		return
	}
	h.Workspace(w, r)
}

// WorkspaceNotes handles GET /api/workspace/notes.
//
//	@Summary		Notes in the projection, optionally filtered
//	@Tags			workspace
//	@Produce		json
//	@Param			q	query	string	false	"Case-insensitive match on title, content and summary"
//	@Success		200	{array}	models.Note
//	@Security		BearerAuth
//	@Router			/workspace/notes [get]
func (h *Handler) WorkspaceNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.State().Notes(r.URL.Query().Get("q")))
}

// WorkspaceTasks handles GET /api/workspace/tasks.
//
//	@Summary		Tasks in the projection
//	@Tags			workspace
//	@Produce		json
//	@Param			note_id	query	string	false	"Only tasks of this note"
//	@Success		200		{array}	models.Task
//	@Security		BearerAuth
//	@Router			/workspace/tasks [get]
func (h *Handler) WorkspaceTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.State().Tasks(r.URL.Query().Get("note_id")))
}

// WorkspaceEvents handles GET /api/workspace/events.
//
//	@Summary		Events in the projection
//	@Tags			workspace
//	@Produce		json
//	@Param			date	query	string	false	"YYYY-MM-DD"
//	@Success		200		{array}	models.Event
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspace/events [get]
func (h *Handler) WorkspaceEvents(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" && !validDate(date) {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}
	writeJSON(w, http.StatusOK, h.sess.State().Events(date))
}

// WorkspaceDay handles GET /api/workspace/day/{date}.
//
//	@Summary		Notes updated and events scheduled on one day
//	@Tags			workspace
//	@Produce		json
//	@Param			date	path		string	true	"YYYY-MM-DD"
//	@Success		200		{object}	workspace.DayView
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspace/day/{date} [get]
func (h *Handler) WorkspaceDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}
	writeJSON(w, http.StatusOK, h.sess.State().Day(date))
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
