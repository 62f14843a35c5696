package attachments

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSyncDropsRowsWithoutBlob(t *testing.T) {
	s := testutil.TestStore(t, nil)
	_, blobs := testutil.TestBlobs(t)
	ctx := context.Background()

	n, _ := s.CreateNote(ctx, "guest_a", models.Note{})
	kept, _ := s.InsertImage(ctx, "guest_a", n.ID, "guest_a/"+n.ID+"/1-kept.png")
	gone, _ := s.InsertImage(ctx, "guest_a", n.ID, "guest_a/"+n.ID+"/2-gone.png")
	if err := blobs.Write(kept.URL, []byte("png")); err != nil {
		t.Fatal(err)
	}

	rep, err := NewReconciler(s, blobs, time.Hour, quietLogger()).Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(rep.RowsRemoved) != 1 || rep.RowsRemoved[0] != gone.ID {
		t.Errorf("rows removed = %v", rep.RowsRemoved)
	}
	images, _ := s.ListImages(ctx, n.ID)
	if len(images) != 1 || images[0].ID != kept.ID {
		t.Errorf("images = %+v", images)
	}
}

func TestSyncRemovesOrphanBlobsAfterGrace(t *testing.T) {
	s := testutil.TestStore(t, nil)
	_, blobs := testutil.TestBlobs(t)
	ctx := context.Background()

	n, _ := s.CreateNote(ctx, "guest_a", models.Note{})
	img, _ := s.InsertImage(ctx, "guest_a", n.ID, "guest_a/"+n.ID+"/1-a.png")
	_ = blobs.Write(img.URL, []byte("png"))

	// Deleting the note cascades the row; the blob stays behind.
	if err := s.DeleteNote(ctx, n.ID); err != nil {
		t.Fatal(err)
	}

	r := NewReconciler(s, blobs, time.Hour, quietLogger())
	rep, _ := r.Sync(ctx)
	if len(rep.BlobsRemoved) != 0 {
		t.Fatalf("fresh orphan removed inside grace: %v", rep.BlobsRemoved)
	}

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rep, _ = r.Sync(ctx)
	if len(rep.BlobsRemoved) != 1 || rep.BlobsRemoved[0] != img.URL {
		t.Errorf("blobs removed = %v", rep.BlobsRemoved)
	}
	if _, err := blobs.Read(img.URL); err == nil {
		t.Error("orphan blob still readable")
	}
}

func TestWatchDropsRowWhenBlobDeleted(t *testing.T) {
	s := testutil.TestStore(t, nil)
	root, blobs := testutil.TestBlobs(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, _ := s.CreateNote(ctx, "guest_a", models.Note{})
	img, _ := s.InsertImage(ctx, "guest_a", n.ID, "guest_a/"+n.ID+"/1-a.png")
	_ = blobs.Write(img.URL, []byte("png"))

	var (
		mu      sync.Mutex
		removed []string
	)
	r := NewReconciler(s, blobs, time.Hour, quietLogger())
	go r.Watch(ctx, func(rep Report) {
		mu.Lock()
		removed = append(removed, rep.RowsRemoved...)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(img.URL))); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		images, _ := s.ListImages(context.Background(), n.ID)
		return len(images) == 0
	}, "row not dropped after blob removal")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(removed) == 1 && removed[0] == img.ID
	}, "callback not invoked with removed row")
}
