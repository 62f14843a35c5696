// Package autosave buffers title and content edits of the open note and
// commits them after a quiet window.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

// Editable fields.
const (
	FieldTitle   = "title"
	FieldContent = "content"
)

// DefaultQuietWindow is the pause after the last edit before a commit.
const DefaultQuietWindow = time.Second

const commitTimeout = 10 * time.Second

// Status is the save indicator.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusFailed Status = "failed"
)

// Persister writes partial note updates.
type Persister interface {
	UpdateNoteFields(ctx context.Context, id string, f models.NoteFields) (time.Time, error)
}

// Draft is the in-memory editing state of the open note. Pending lists the
// fields not yet committed.
type Draft struct {
	NoteID  string   `json:"note_id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Pending []string `json:"pending"`
}

// Coalescer holds the draft of one open note and at most one armed commit
// timer. Every edit re-arms the timer, so only the last value inside a
// quiet window is written.
//
// Each armed timer carries the generation it was armed in. Edits, Open,
// Flush and Close bump the generation, so a timer that fires after being
// superseded finds a mismatch and does nothing. That is what keeps a late
// timer from writing to a note that is no longer open.
type Coalescer struct {
	store Persister
	quiet time.Duration
	log   *slog.Logger

	commitMu sync.Mutex // serializes commits so writes land in edit order

	mu      sync.Mutex
	draft   Draft
	dirty   map[string]bool
	timer   *time.Timer
	gen     uint64
	opened  uint64
	status  Status
	lastErr error
	saved   time.Time
	closed  bool
}

// New builds a Coalescer. A non-positive quiet uses DefaultQuietWindow.
func New(store Persister, quiet time.Duration, log *slog.Logger) *Coalescer {
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coalescer{
		store:  store,
		quiet:  quiet,
		log:    log,
		dirty:  make(map[string]bool),
		status: StatusIdle,
	}
}

// Open makes noteID the editing target with the given persisted values.
// Uncommitted edits of the previous target are discarded and returned so
// the caller can surface them; they are never written to either note.
// Re-opening the current target with pending edits keeps its draft and
// armed commit; without pending edits it reloads the given values.
func (c *Coalescer) Open(noteID, title, content string) *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	if noteID != "" && noteID == c.draft.NoteID && len(c.dirty) > 0 {
		return nil
	}

	var discarded *Draft
	if len(c.dirty) > 0 {
		d := c.snapshotLocked()
		discarded = &d
	}
	c.stopLocked()
	c.opened++
	c.draft = Draft{NoteID: noteID, Title: title, Content: content}
	c.dirty = make(map[string]bool)
	c.status = StatusIdle
	c.lastErr = nil
	return discarded
}

// Edit updates field of the draft immediately and re-arms the commit timer.
func (c *Coalescer) Edit(field, value string) error {
	if field != FieldTitle && field != FieldContent {
		return apperr.ErrInvalidField
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperr.ErrSessionClosed
	}
	if c.draft.NoteID == "" {
		return apperr.ErrNotFound
	}

	if field == FieldTitle {
		c.draft.Title = value
	} else {
		c.draft.Content = value
	}
	c.dirty[field] = true

	c.stopLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.quiet, func() { c.fire(gen) })
	return nil
}

// Flush commits pending edits now.
func (c *Coalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.stopLocked()
	gen := c.gen
	c.mu.Unlock()
	return c.commit(ctx, gen)
}

// Close cancels any armed timer. Later edits fail with apperr.ErrSessionClosed.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopLocked()
}

// Draft returns a copy of the current draft.
func (c *Coalescer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Status returns the save indicator and the last commit error, if any.
func (c *Coalescer) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.lastErr
}

// LastSaved returns the updated_at of the last successful commit.
func (c *Coalescer) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

func (c *Coalescer) fire(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	_ = c.commit(ctx, gen)
}

func (c *Coalescer) commit(ctx context.Context, gen uint64) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	c.mu.Lock()
	if gen != c.gen || len(c.dirty) == 0 {
		c.mu.Unlock()
		return nil
	}
	noteID, opened := c.draft.NoteID, c.opened
	fields, names := c.fieldsLocked()
	c.dirty = make(map[string]bool)
	c.timer = nil
	c.status = StatusSaving
	c.mu.Unlock()

	updated, err := c.store.UpdateNoteFields(ctx, noteID, fields)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		perr := &apperr.PersistError{NoteID: noteID, Fields: names, Err: err}
		c.log.Warn("autosave failed",
			slog.String("note", noteID),
			slog.Any("fields", names),
			slog.String("error", err.Error()))
		if opened == c.opened {
			for _, n := range names {
				c.dirty[n] = true
			}
			c.status = StatusFailed
			c.lastErr = perr
		}
		return perr
	}
	if opened == c.opened {
		c.saved = updated
		c.lastErr = nil
		if len(c.dirty) == 0 {
			c.status = StatusSaved
		}
	}
	c.log.Debug("autosaved", slog.String("note", noteID), slog.Any("fields", names))
	return nil
}

func (c *Coalescer) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Coalescer) fieldsLocked() (models.NoteFields, []string) {
	var (
		f     models.NoteFields
		names []string
	)
	if c.dirty[FieldTitle] {
		title := c.draft.Title
		f.Title = &title
		names = append(names, FieldTitle)
	}
	if c.dirty[FieldContent] {
		content := c.draft.Content
		f.Content = &content
		names = append(names, FieldContent)
	}
	return f, names
}

func (c *Coalescer) snapshotLocked() Draft {
	d := c.draft
	d.Pending = []string{}
	for _, f := range []string{FieldTitle, FieldContent} {
		if c.dirty[f] {
			d.Pending = append(d.Pending, f)
		}
	}
	return d
}
