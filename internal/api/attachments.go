package api

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadImage handles POST /api/notes/{id}/images (multipart/form-data,
// field "file").
//
//	@Summary		Attach an image to a note
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			file	formData	file	true	"Image"
//	@Success		201		{object}	models.Image
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/images [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	img, err := h.svc.UploadImage(r.Context(), h.owner(), chi.URLParam(r, "id"), header.Filename, data)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// ListImages handles GET /api/notes/{id}/images.
//
//	@Summary		List a note's images
//	@Tags			images
//	@Produce		json
//	@Param			id	path	string	true	"Note id"
//	@Success		200	{array}	models.Image
//	@Security		BearerAuth
//	@Router			/notes/{id}/images [get]
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListImages(r.Context(), h.owner(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list images", err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// ServeImage handles GET /api/images/{id}.
//
//	@Summary		Download an image
//	@Tags			images
//	@Param			id	path	string	true	"Image id"
//	@Success		200	"Image bytes"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{id} [get]
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	img, data, err := h.svc.ReadImage(r.Context(), h.owner(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "read image", err)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(img.URL))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteImage handles DELETE /api/images/{id}.
//
//	@Summary		Remove an image
//	@Tags			images
//	@Param			id	path	string	true	"Image id"
//	@Success		204	"Image deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{id} [delete]
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteImage(r.Context(), h.owner(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
