package noteservice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/storage"
	"github.com/starford/notemind/internal/store"
	"github.com/starford/notemind/internal/testutil"
)

const owner = "guest_svc"

func newService(t *testing.T) (*Service, *store.Store, storage.Provider) {
	t.Helper()
	st := testutil.TestStore(t, nil)
	_, blobs := testutil.TestBlobs(t)
	svc := NewService(st, blobs, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, st, blobs
}

func strPtr(s string) *string { return &s }

func TestSeed(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	n, err := svc.Seed(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, seedTitle, n.Title)
	assert.Equal(t, seedCategory, n.Category)
	assert.Equal(t, []string{"test", "demo"}, n.Tags)
	assert.Equal(t, models.DefaultNoteType, n.NoteType)
}

func TestGetNoteHidesOtherOwner(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, "guest_other", models.Note{Content: "x"})
	require.NoError(t, err)

	_, err = svc.GetNote(ctx, owner, n.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteNote(ctx, owner, n.ID), apperr.ErrNotFound)
}

func TestUpdateNoteIfMatch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, owner, models.Note{Title: "a", Content: "b"})
	require.NoError(t, err)

	_, err = svc.UpdateNote(ctx, owner, n.ID, models.NoteFields{Content: strPtr("c")}, "stale")
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err := svc.UpdateNote(ctx, owner, n.ID, models.NoteFields{Content: strPtr("c")}, Version(n))
	require.NoError(t, err)
	assert.Equal(t, "c", got.Content)
	assert.Equal(t, "a", got.Title)
	assert.True(t, got.UpdatedAt.After(n.UpdatedAt))
}

func TestImport(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	doc := "---\ncategory: Work\n---\n# Plan\n\nShip it #release\n\n---\n**Summary:** launch plan\n**Tags:** q3"
	n, err := svc.Import(ctx, owner, []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Plan", n.Title)
	assert.Equal(t, "Work", n.Category)
	assert.Equal(t, "launch plan", n.Summary)
	assert.Contains(t, n.Tags, "release")
	assert.Contains(t, n.Tags, "q3")

	_, err = svc.Import(ctx, owner, []byte("   \n"))
	assert.ErrorIs(t, err, apperr.ErrEmptyInput)
}

func TestToggleTaskScopedToOwner(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, owner, models.Note{Content: "x"})
	require.NoError(t, err)
	tasks, err := st.InsertTasks(ctx, owner, n.ID, []string{"call"})
	require.NoError(t, err)

	require.NoError(t, svc.ToggleTask(ctx, owner, tasks[0].ID, true))
	got, err := svc.ListTasks(ctx, owner, n.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Completed)

	assert.ErrorIs(t, svc.ToggleTask(ctx, "guest_other", tasks[0].ID, false), apperr.ErrNotFound)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   EventInput
	}{
		{"missing title", EventInput{Date: "2025-03-10"}},
		{"bad date", EventInput{Title: "x", Date: "10/03/2025"}},
		{"bad time", EventInput{Title: "x", Date: "2025-03-10", StartTime: "25:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, owner, tc.in)
			assert.Error(t, err)
		})
	}

	e, err := svc.CreateEvent(ctx, owner, EventInput{Title: "  Lunch ", Date: "2025-03-10", StartTime: "12:30"})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", e.Title)
	assert.Nil(t, e.NoteID)

	_, err = svc.CreateEvent(ctx, owner, EventInput{Title: "x", Date: "2025-03-10", NoteID: strPtr("missing")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteEvent(ctx, "guest_other", e.ID), apperr.ErrNotFound)
	require.NoError(t, svc.DeleteEvent(ctx, owner, e.ID))
}

func TestImageLifecycle(t *testing.T) {
	svc, _, blobs := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, owner, models.Note{Content: "x"})
	require.NoError(t, err)

	img, err := svc.UploadImage(ctx, owner, n.ID, "../my photo.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, owner+"/"+n.ID+"/1700000000000-my_photo.png", img.URL)

	list, err := svc.ListImages(ctx, owner, n.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, data, err := svc.ReadImage(ctx, owner, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, _, err = svc.ReadImage(ctx, "guest_other", img.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.DeleteImage(ctx, owner, img.ID))
	_, err = blobs.Read(img.URL)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "blob should be gone: %v", err)
}

func TestDeleteNoteRemovesBlobs(t *testing.T) {
	svc, st, blobs := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, owner, models.Note{Content: "x"})
	require.NoError(t, err)
	img, err := svc.UploadImage(ctx, owner, n.ID, "a.png", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNote(ctx, owner, n.ID))

	rows, err := st.AllImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	metas, err := blobs.List("")
	require.NoError(t, err)
	for _, m := range metas {
		assert.False(t, strings.HasSuffix(m.Path, img.URL), "blob survived: %s", m.Path)
	}
}
