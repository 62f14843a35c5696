package store

import (
	"context"
	"os"
	"testing"

	"github.com/starford/notemind/internal/models"
)

// TestPostgresRoundTrip runs against a live database when
// NOTEMIND_TEST_POSTGRES_DSN is set.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("NOTEMIND_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NOTEMIND_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(dsn, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if s.Driver() != "postgres" {
		t.Fatalf("driver = %q", s.Driver())
	}

	ctx := context.Background()
	owner := "guest_pgtest_" + s.newID()
	n, err := s.CreateNote(ctx, owner, models.Note{Title: "pg", Content: "body"})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteNote(context.Background(), n.ID) })

	if _, err := s.InsertTasks(ctx, owner, n.ID, []string{"a", "b"}); err != nil {
		t.Fatalf("InsertTasks: %v", err)
	}
	if _, err := s.UpdateNoteFields(ctx, n.ID, models.NoteFields{Content: ptr("edited")}); err != nil {
		t.Fatalf("UpdateNoteFields: %v", err)
	}
	notes, err := s.ListNotes(ctx, owner)
	if err != nil || len(notes) != 1 || notes[0].Content != "edited" {
		t.Fatalf("ListNotes = %+v, %v", notes, err)
	}
	if err := s.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	tasks, _ := s.ListTasks(ctx, owner)
	if len(tasks) != 0 {
		t.Errorf("tasks survived cascade: %d", len(tasks))
	}
}
