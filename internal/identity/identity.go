// Package identity manages the per-installation anonymous owner id that
// scopes every note, task, event and image.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Prefix marks an anonymous owner id.
const Prefix = "guest_"

// New returns a fresh anonymous owner id.
func New() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// LoadOrCreate returns the owner id stored at path, generating and saving a
// new one when the file is absent. It is meant to run once at startup.
func LoadOrCreate(path string) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(data))
		if !Valid(id) {
			return "", fmt.Errorf("identity: malformed owner id in %s", path)
		}
		return id, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("identity: read %s: %w", path, err)
	}

	id := New()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("identity: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("identity: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("identity: rename: %w", err)
	}
	return id, nil
}

// Valid reports whether id looks like an anonymous owner id.
func Valid(id string) bool {
	if !strings.HasPrefix(id, Prefix) || len(id) == len(Prefix) {
		return false
	}
	for _, r := range id[len(Prefix):] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
