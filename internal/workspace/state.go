// Package workspace holds the in-memory projection of one owner's notes,
// tasks and events, and the listener that rebuilds it on every change.
package workspace

import (
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/notemind/internal/models"
)

// Snapshot is one immutable projection of the store.
type Snapshot struct {
	Notes       []models.Note
	Tasks       []models.Task
	Events      []models.Event
	Version     uint64
	RefreshedAt time.Time
}

// DayView is the calendar view of a single date.
type DayView struct {
	Date   string         `json:"date"`
	Notes  []models.Note  `json:"notes"`
	Events []models.Event `json:"events"`
}

// State is a read-only projection. The only way it changes is a wholesale
// replace by the Listener after a complete refetch.
type State struct {
	snap atomic.Pointer[Snapshot]
}

// NewState returns an empty projection at version 0.
func NewState() *State {
	s := &State{}
	s.snap.Store(&Snapshot{Notes: []models.Note{}, Tasks: []models.Task{}, Events: []models.Event{}})
	return s
}

func (s *State) replace(notes []models.Note, tasks []models.Task, events []models.Event, at time.Time) {
	prev := s.snap.Load()
	s.snap.Store(&Snapshot{
		Notes:       notes,
		Tasks:       tasks,
		Events:      events,
		Version:     prev.Version + 1,
		RefreshedAt: at,
	})
}

// Version counts wholesale replacements.
func (s *State) Version() uint64 { return s.snap.Load().Version }

// RefreshedAt is the time of the last replacement.
func (s *State) RefreshedAt() time.Time { return s.snap.Load().RefreshedAt }

// Notes returns notes in store order (most recently updated first). A
// non-empty query keeps notes whose title, content or summary contains it,
// case-insensitively.
func (s *State) Notes(query string) []models.Note {
	notes := s.snap.Load().Notes
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(notes)
	}
	out := []models.Note{}
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Content), q) ||
			strings.Contains(strings.ToLower(n.Summary), q) {
			out = append(out, n)
		}
	}
	return out
}

// Note looks up one note by id.
func (s *State) Note(id string) (models.Note, bool) {
	for _, n := range s.snap.Load().Notes {
		if n.ID == id {
			return n, true
		}
	}
	return models.Note{}, false
}

// Tasks returns the tasks of noteID, or all tasks when noteID is empty.
func (s *State) Tasks(noteID string) []models.Task {
	tasks := s.snap.Load().Tasks
	if noteID == "" {
		return slices.Clone(tasks)
	}
	out := []models.Task{}
	for _, t := range tasks {
		if t.NoteID == noteID {
			out = append(out, t)
		}
	}
	return out
}

// Events returns events on date (YYYY-MM-DD), or all events when date is
// empty, in date order.
func (s *State) Events(date string) []models.Event {
	events := s.snap.Load().Events
	if date == "" {
		return slices.Clone(events)
	}
	out := []models.Event{}
	for _, e := range events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// Day returns notes last updated on date (UTC) together with its events.
func (s *State) Day(date string) DayView {
	snap := s.snap.Load()
	view := DayView{Date: date, Notes: []models.Note{}, Events: s.Events(date)}
	for _, n := range snap.Notes {
		if n.UpdatedAt.UTC().Format(models.DateLayout) == date {
			view.Notes = append(view.Notes, n)
		}
	}
	return view
}
