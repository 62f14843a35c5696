// Package testutil provides shared test helpers for stores and blob roots.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/storage"
	"github.com/starford/notemind/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically cleaned
// up. notify may be nil.
func TestStore(t *testing.T, notify store.Notifier) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notemind-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := store.Open(dbFile.Name(), notify)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestFeed returns a change broker that is closed at cleanup.
func TestFeed(t *testing.T) *changefeed.Broker {
	t.Helper()
	b := changefeed.NewBroker(0)
	t.Cleanup(b.Close)
	return b
}

// TestBlobs creates a temporary attachment root with a storage.Provider.
func TestBlobs(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	p, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, p
}
