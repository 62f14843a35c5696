// Package session hosts one open workspace: the owner, its live projection,
// the autosave draft of the open note and the analysis pipeline.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/autosave"
	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/noteservice"
	"github.com/starford/notemind/internal/pipeline"
	"github.com/starford/notemind/internal/storage"
	"github.com/starford/notemind/internal/store"
	"github.com/starford/notemind/internal/workspace"
)

// Assistant is the AI surface a session needs.
type Assistant interface {
	pipeline.Extractor
	pipeline.Embedder
	Chat(ctx context.Context, noteContent string, history []models.ChatMessage, prompt string) (string, error)
}

// Option configures a Session.
type Option func(*Session)

// WithQuietWindow sets the autosave quiet window.
func WithQuietWindow(d time.Duration) Option {
	return func(s *Session) { s.quiet = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is safe for concurrent use. After Close every mutating call
// returns apperr.ErrSessionClosed and in-flight analyses are discarded.
type Session struct {
	owner string
	quiet time.Duration
	log   *slog.Logger

	notes    *noteservice.Service
	state    *workspace.State
	listener *workspace.Listener
	saver    *autosave.Coalescer
	analyzer *pipeline.Analyzer
	ai       Assistant

	mu     sync.Mutex
	closed bool
}

// New wires a session for owner. Start must be called before the
// projection is populated.
func New(owner string, st store.Backend, feed workspace.Feed, blobs storage.Provider, ai Assistant, opts ...Option) *Session {
	s := &Session{owner: owner, log: slog.Default(), ai: ai}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(slog.String("owner", owner))

	s.notes = noteservice.NewService(st, blobs, s.log)
	s.state = workspace.NewState()
	s.listener = workspace.NewListener(owner, st, feed, s.state, s.log)
	s.saver = autosave.New(st, s.quiet, s.log)
	rec := pipeline.NewReconciler(ai, st, s.listener.Refresh, s.log)
	s.analyzer = pipeline.NewAnalyzer(st, ai, rec,
		pipeline.WithRelevance(s.relevant),
		pipeline.WithAnalyzerLogger(s.log))
	return s
}

// Owner returns the anonymous owner id.
func (s *Session) Owner() string { return s.owner }

// Notes returns the owner-scoped CRUD service.
func (s *Session) Notes() *noteservice.Service { return s.notes }

// State returns the live workspace projection.
func (s *Session) State() *workspace.State { return s.state }

// Start subscribes to changes and loads the projection.
func (s *Session) Start(ctx context.Context) error {
	if s.isClosed() {
		return apperr.ErrSessionClosed
	}
	return s.listener.Start(ctx)
}

// Refresh forces a synchronous refetch of the projection.
func (s *Session) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return apperr.ErrSessionClosed
	}
	return s.listener.Refresh(ctx)
}

// OpenNote makes id the editing target. Unsaved edits of the previous note
// are dropped and logged.
func (s *Session) OpenNote(ctx context.Context, id string) (*models.Note, error) {
	if s.isClosed() {
		return nil, apperr.ErrSessionClosed
	}
	n, err := s.notes.GetNote(ctx, s.owner, id)
	if err != nil {
		return nil, err
	}
	if d := s.saver.Open(n.ID, n.Title, n.Content); d != nil {
		s.log.Warn("discarded unsaved edits",
			slog.String("note", d.NoteID),
			slog.Any("fields", d.Pending))
	}
	return n, nil
}

// Edit changes a field of the open note's draft.
func (s *Session) Edit(field, value string) error {
	if s.isClosed() {
		return apperr.ErrSessionClosed
	}
	return s.saver.Edit(field, value)
}

// Draft returns the open note's draft.
func (s *Session) Draft() autosave.Draft { return s.saver.Draft() }

// SaveStatus returns the save indicator and the last commit error.
func (s *Session) SaveStatus() (autosave.Status, error) { return s.saver.Status() }

// LastSaved returns when the open note was last committed.
func (s *Session) LastSaved() time.Time { return s.saver.LastSaved() }

// Flush commits pending edits of the open note now.
func (s *Session) Flush(ctx context.Context) error { return s.saver.Flush(ctx) }

// Analyze runs extraction and reconcile for one of the owner's notes.
// Pending edits of that note are committed first so the analysis reads
// them.
func (s *Session) Analyze(ctx context.Context, noteID string) (*models.AnalysisResult, error) {
	if s.isClosed() {
		return nil, apperr.ErrSessionClosed
	}
	if s.saver.Draft().NoteID == noteID {
		if err := s.saver.Flush(ctx); err != nil {
			return nil, err
		}
	}
	return s.analyzer.Analyze(ctx, s.owner, noteID)
}

// Analyzing reports whether noteID has an analysis in flight.
func (s *Session) Analyzing(noteID string) bool { return s.analyzer.InFlight(noteID) }

// Chat answers prompt about one of the owner's notes.
func (s *Session) Chat(ctx context.Context, noteID string, history []models.ChatMessage, prompt string) (string, error) {
	if s.isClosed() {
		return "", apperr.ErrSessionClosed
	}
	n, err := s.notes.GetNote(ctx, s.owner, noteID)
	if err != nil {
		return "", err
	}
	return s.ai.Chat(ctx, n.Content, history, prompt)
}

// Close commits pending edits, stops autosave and releases the change
// subscription. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.saver.Flush(ctx)
	s.saver.Close()
	s.listener.Close()
	if err != nil {
		s.log.Error("final autosave failed", slog.String("error", err.Error()))
	}
	return err
}

func (s *Session) relevant(owner, _ string) bool {
	return owner == s.owner && !s.isClosed()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
