package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/models"
)

type recorder struct {
	mu      sync.Mutex
	changes []changefeed.Change
}

func (r *recorder) Publish(c changefeed.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Table + "." + c.Kind
	}
	return out
}

func testStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	f, err := os.CreateTemp("", "notemind-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	rec := &recorder{}
	s, err := Open(f.Name(), rec)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func ptr(s string) *string { return &s }

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		driver  string
		wantErr bool
	}{
		{dsn: "/tmp/notes.db", driver: "sqlite3"},
		{dsn: "file:///tmp/notes.db", driver: "sqlite3"},
		{dsn: "sqlite:///tmp/notes.db", driver: "sqlite3"},
		{dsn: "postgres://u:p@localhost/notemind?sslmode=disable", driver: "postgres"},
		{dsn: "postgresql://localhost/notemind", driver: "postgres"},
		{dsn: "mysql://localhost/db", wantErr: true},
		{dsn: "  ", wantErr: true},
	}
	for _, tt := range tests {
		d, _, err := parseDSN(tt.dsn)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDSN(%q): expected error", tt.dsn)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDSN(%q): %v", tt.dsn, err)
			continue
		}
		if d.driver != tt.driver {
			t.Errorf("parseDSN(%q) driver = %q, want %q", tt.dsn, d.driver, tt.driver)
		}
	}
}

func TestRebind(t *testing.T) {
	s := &Store{dialect: postgresDialect}
	got := s.rebind(`UPDATE notes SET title = ? WHERE id = ?`)
	want := `UPDATE notes SET title = $1 WHERE id = $2`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	s.dialect = sqliteDialect
	if got := s.rebind(`WHERE id = ?`); got != `WHERE id = ?` {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestCreateNoteDefaults(t *testing.T) {
	s, rec := testStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, "guest_a", models.Note{})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if n.Title != models.DefaultTitle || n.Category != models.DefaultCategory || n.NoteType != models.DefaultNoteType {
		t.Errorf("defaults not applied: %+v", n)
	}
	got, err := s.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.OwnerID != "guest_a" || got.Tags == nil || got.Embedding != nil {
		t.Errorf("unexpected stored note: %+v", got)
	}
	if tables := rec.tables(); len(tables) != 1 || tables[0] != "notes.insert" {
		t.Errorf("changes = %v", tables)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.GetNote(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNotesScopedAndOrdered(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	first, _ := s.CreateNote(ctx, "guest_a", models.Note{Title: "first"})
	second, _ := s.CreateNote(ctx, "guest_a", models.Note{Title: "second"})
	_, _ = s.CreateNote(ctx, "guest_b", models.Note{Title: "other"})

	notes, err := s.ListNotes(ctx, "guest_a")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].ID != second.ID || notes[1].ID != first.ID {
		t.Errorf("wrong order: %s, %s", notes[0].Title, notes[1].Title)
	}

	if _, err := s.UpdateNoteFields(ctx, first.ID, models.NoteFields{Content: ptr("edited")}); err != nil {
		t.Fatalf("UpdateNoteFields: %v", err)
	}
	notes, _ = s.ListNotes(ctx, "guest_a")
	if notes[0].ID != first.ID {
		t.Errorf("edited note should sort first, got %s", notes[0].Title)
	}
}

func TestUpdateNoteFieldsMonotonic(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, _ := s.CreateNote(ctx, "guest_a", models.Note{Title: "t", Content: "c"})

	prev := n.UpdatedAt
	for i := 0; i < 3; i++ {
		next, err := s.UpdateNoteFields(ctx, n.ID, models.NoteFields{Title: ptr("t2")})
		if err != nil {
			t.Fatalf("UpdateNoteFields: %v", err)
		}
		if !next.After(prev) {
			t.Fatalf("updated_at did not advance: %v -> %v", prev, next)
		}
		prev = next
	}

	got, _ := s.GetNote(ctx, n.ID)
	if got.Title != "t2" || got.Content != "c" {
		t.Errorf("partial update clobbered fields: %+v", got)
	}
	if !got.UpdatedAt.Equal(prev) {
		t.Errorf("stored updated_at = %v, want %v", got.UpdatedAt, prev)
	}
}

func TestUpdateNoteFieldsMissing(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.UpdateNoteFields(context.Background(), "nope", models.NoteFields{Title: ptr("x")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyAnalysis(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	n, _ := s.CreateNote(ctx, "guest_a", models.Note{Title: "raw", Content: "Meet Alice tomorrow"})

	r := &models.AnalysisResult{
		ImprovedTitle:  "Meeting with Alice",
		Summary:        "A meeting.",
		Category:       "Work",
		NoteType:       "Meeting",
		Tags:           []string{"alice"},
		KeyPoints:      []string{"meet"},
		CommonTopics:   []string{"people"},
		SuggestedLinks: []string{},
	}
	if err := s.ApplyAnalysis(ctx, n.ID, r, []float32{0.25, -1, 3}); err != nil {
		t.Fatalf("ApplyAnalysis: %v", err)
	}
	got, _ := s.GetNote(ctx, n.ID)
	if got.Title != "Meeting with Alice" || got.Category != "Work" || got.NoteType != "Meeting" {
		t.Errorf("fields not applied: %+v", got)
	}
	if got.Content != "Meet Alice tomorrow" {
		t.Errorf("content must be untouched, got %q", got.Content)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.25 || got.Embedding[1] != -1 {
		t.Errorf("embedding = %v", got.Embedding)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "alice" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestTasksLifecycle(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	n, _ := s.CreateNote(ctx, "guest_a", models.Note{})

	tasks, err := s.InsertTasks(ctx, "guest_a", n.ID, []string{"one", "two"})
	if err != nil {
		t.Fatalf("InsertTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Completed {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if err := s.SetTaskCompleted(ctx, tasks[0].ID, true); err != nil {
		t.Fatalf("SetTaskCompleted: %v", err)
	}
	listed, _ := s.ListTasks(ctx, "guest_a")
	if len(listed) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(listed))
	}
	completed := 0
	for _, tk := range listed {
		if tk.Completed {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}

	if err := s.DeleteTasksForNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteTasksForNote: %v", err)
	}
	listed, _ = s.ListTasksForNote(ctx, n.ID)
	if len(listed) != 0 {
		t.Errorf("tasks survived delete: %+v", listed)
	}
	if err := s.SetTaskCompleted(ctx, "missing", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEventsOrderedByDate(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	_, err := s.InsertEvents(ctx, "guest_a", []models.Event{
		{Title: "later", Date: "2025-04-10"},
		{Title: "sooner", Date: "2025-04-02"},
	})
	if err != nil {
		t.Fatalf("InsertEvents: %v", err)
	}
	ev, err := s.CreateEvent(ctx, "guest_a", models.Event{Title: "middle", Date: "2025-04-05"})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	events, _ := s.ListEvents(ctx, "guest_a")
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Title != "sooner" || events[1].Title != "middle" || events[2].Title != "later" {
		t.Errorf("wrong order: %v, %v, %v", events[0].Title, events[1].Title, events[2].Title)
	}

	if err := s.DeleteEvent(ctx, ev.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	events, _ = s.ListEvents(ctx, "guest_a")
	if len(events) != 2 {
		t.Errorf("expected 2 events after delete, got %d", len(events))
	}
}

func TestDeleteNoteCascades(t *testing.T) {
	s, rec := testStore(t)
	ctx := context.Background()
	n, _ := s.CreateNote(ctx, "guest_a", models.Note{Title: "doomed"})
	keep, _ := s.CreateNote(ctx, "guest_a", models.Note{Title: "kept"})

	_, _ = s.InsertTasks(ctx, "guest_a", n.ID, []string{"a"})
	_, _ = s.InsertTasks(ctx, "guest_a", keep.ID, []string{"b"})
	_, _ = s.InsertEvents(ctx, "guest_a", []models.Event{{Title: "e", Date: "2025-01-01", NoteID: &n.ID}})
	_, _ = s.InsertImage(ctx, "guest_a", n.ID, "guest_a/"+n.ID+"/1-a.png")

	if err := s.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}

	if _, err := s.GetNote(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present: %v", err)
	}
	tasks, _ := s.ListTasks(ctx, "guest_a")
	if len(tasks) != 1 || tasks[0].NoteID != keep.ID {
		t.Errorf("task cascade wrong: %+v", tasks)
	}
	events, _ := s.ListEvents(ctx, "guest_a")
	if len(events) != 1 || events[0].NoteID != nil {
		t.Errorf("event should survive with note_id cleared: %+v", events)
	}
	images, _ := s.ListImages(ctx, n.ID)
	if len(images) != 0 {
		t.Errorf("images survived: %+v", images)
	}

	tables := rec.tables()
	last := tables[len(tables)-4:]
	want := []string{"notes.delete", "tasks.delete", "events.update", "images.delete"}
	for i := range want {
		if last[i] != want[i] {
			t.Errorf("change %d = %q, want %q", i, last[i], want[i])
		}
	}

	if err := s.DeleteNote(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestImages(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	n, _ := s.CreateNote(ctx, "guest_a", models.Note{})

	img, err := s.InsertImage(ctx, "guest_a", n.ID, "guest_a/x/1-a.png")
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	all, _ := s.AllImages(ctx)
	if len(all) != 1 || all[0].URL != "guest_a/x/1-a.png" {
		t.Fatalf("AllImages = %+v", all)
	}
	if err := s.DeleteImage(ctx, img.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if err := s.DeleteImage(ctx, img.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
