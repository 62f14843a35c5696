package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notemind/internal/session"
)

// RouterConfig carries the router's settings.
// SSE, if non-nil, is mounted at GET /events inside the auth group.
// RepoURL and Branch are the publish defaults.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	SSE         http.Handler
	RepoURL     string
	Branch      string
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(sess *session.Session, pub Publisher, cfg RouterConfig) chi.Router {
	h := NewHandler(sess, pub, cfg.RepoURL, cfg.Branch)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/seed", h.SeedNote)
	r.Post("/notes/import", h.ImportNote)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Patch("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)

		r.Post("/analyze", h.AnalyzeNote)
		r.Post("/chat", h.ChatNote)
		r.Get("/tasks", h.ListNoteTasks)
		r.Get("/preview", h.PreviewNote)
		r.Get("/images", h.ListImages)
		r.Post("/images", h.UploadImage)
	})

	r.Patch("/tasks/{id}", h.ToggleTask)

	r.Get("/calendar", h.ListCalendar)
	r.Post("/calendar", h.CreateCalendarEvent)
	r.Delete("/calendar/{id}", h.DeleteCalendarEvent)

	r.Get("/images/{id}", h.ServeImage)
	r.Delete("/images/{id}", h.DeleteImage)

	// Editing session.
	r.Post("/session/open", h.OpenNote)
	r.Get("/session/draft", h.GetDraft)
	r.Put("/session/draft", h.EditDraft)
	r.Post("/session/flush", h.FlushDraft)

	// Live projection.
	r.Get("/workspace", h.Workspace)
	r.Post("/workspace/refresh", h.RefreshWorkspace)
	r.Get("/workspace/notes", h.WorkspaceNotes)
	r.Get("/workspace/tasks", h.WorkspaceTasks)
	r.Get("/workspace/events", h.WorkspaceEvents)
	r.Get("/workspace/day/{date}", h.WorkspaceDay)

	r.Post("/publish", h.Publish)

	// SSE endpoint (protected by same auth middleware).
	if cfg.SSE != nil {
		r.Get("/events", cfg.SSE.ServeHTTP)
	}

	return r
}
