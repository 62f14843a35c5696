package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notemind/internal/export"
	"github.com/starford/notemind/internal/models"
)

// Publish handles POST /api/publish.
//
//	@Summary		Publish notes as Markdown files to a repository
//	@Tags			export
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PublishRequest	true	"Target and notes"
//	@Success		200		{object}	PublishResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RepoURL == "" {
		req.RepoURL = h.repoURL
	}
	if req.Branch == "" {
		req.Branch = h.branch
	}

	notes, err := h.svc.ListNotes(r.Context(), h.owner())
	if err != nil {
		writeError(w, "publish", err)
		return
	}
	if len(req.NoteIDs) > 0 {
		notes = slices.DeleteFunc(notes, func(n models.Note) bool {
			return !slices.Contains(req.NoteIDs, n.ID)
		})
	}

	rep, err := h.pub.Publish(r.Context(), req.RepoURL, req.Branch, notes)
	if err != nil {
		writeError(w, "publish", err)
		return
	}
	resp := PublishResponse{Published: rep.Published, Failed: []PublishFailure{}}
	for _, f := range rep.Failed {
		resp.Failed = append(resp.Failed, PublishFailure{NoteID: f.NoteID, Path: f.Path, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// PreviewNote handles GET /api/notes/{id}/preview.
//
//	@Summary		Render a note's published Markdown as HTML
//	@Tags			export
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	PreviewResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/preview [get]
func (h *Handler) PreviewNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetNote(r.Context(), h.owner(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "preview note", err)
		return
	}
	html, err := export.Preview(*n)
	if err != nil {
		writeError(w, "preview note", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Path: export.Path(*n), Markdown: export.Render(*n), HTML: html})
}
