// Package models defines the domain types for notemind.
package models

import "time"

// Note defaults applied on creation.
const (
	DefaultTitle    = "Untitled Note"
	DefaultCategory = "General"
	DefaultNoteType = "Thought"
)

// Note is a user-authored text entry plus its AI-derived metadata.
type Note struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"guest_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Summary        string    `json:"summary,omitempty"`
	Category       string    `json:"category,omitempty"`
	NoteType       string    `json:"note_type,omitempty"`
	Tags           []string  `json:"tags"`
	KeyPoints      []string  `json:"key_points"`
	CommonTopics   []string  `json:"common_topics"`
	SuggestedLinks []string  `json:"suggested_links"`
	Embedding      []float32 `json:"embedding,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Task is an action item owned by exactly one note.
type Task struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	OwnerID   string    `json:"guest_id"`
	Text      string    `json:"task_text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a calendar entry. NoteID is the note that spawned it, if any; it
// is cleared (not cascaded) when that note is deleted.
type Event struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"guest_id"`
	NoteID      *string   `json:"note_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"event_date"` // YYYY-MM-DD
	StartTime   string    `json:"start_time,omitempty"`
	EndTime     string    `json:"end_time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Image is an attachment row pointing at a stored blob.
type Image struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"guest_id"`
	NoteID    string    `json:"note_id"`
	URL       string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// BlobMetadata is a lightweight representation of a stored attachment blob.
type BlobMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteFields is a partial note update. Nil fields are left untouched.
type NoteFields struct {
	Title   *string
	Content *string
}
