package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/checksum"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte{0x89, 'P', 'N', 'G'}
	if err := s.Write("guest_a/n1/1700000000000-cat.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("guest_a/n1/1700000000000-cat.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissing(t *testing.T) {
	s := tempRoot(t)
	if _, err := s.Read("nope.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a/b.png", []byte("bye"))
	if err := s.Delete("a/b.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("a/b.png"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if err := s.Delete(""); err == nil {
		t.Error("deleting the root must fail")
	}
}

func TestList(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("guest_a/n1/1-a.png", []byte("a"))
	_ = s.Write("guest_a/n2/2-b.jpg", []byte("bb"))
	_ = os.WriteFile(filepath.Join(s.Root(), "guest_a", tempPrefix+"x"), []byte("partial"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Path == "guest_a/n1/1-a.png" && (it.Checksum != checksum.Sum([]byte("a")) || it.Size != 1) {
			t.Errorf("bad metadata: %+v", it)
		}
	}

	items, err = s.List("guest_a/n2")
	if err != nil || len(items) != 1 || items[0].Path != "guest_a/n2/2-b.jpg" {
		t.Errorf("scoped list = %+v, %v", items, err)
	}
	items, err = s.List("missing")
	if err != nil || len(items) != 0 {
		t.Errorf("missing dir list = %+v, %v", items, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.png", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.png", []byte("original"))
	if err := s.Write("a.png", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("a.png")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFSCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs", "nested")
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(s.Root()); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFSFileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "notemind-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
