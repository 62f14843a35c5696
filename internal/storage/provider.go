// Package storage keeps attachment blobs under a root directory.
package storage

import "github.com/starford/notemind/internal/models"

// Provider stores attachment blobs by slash-separated relative path, laid
// out as {owner}/{note}/{unix-ms}-{name}.
type Provider interface {
	// List returns metadata for every blob under dir.
	List(dir string) ([]models.BlobMetadata, error)
	Read(path string) ([]byte, error)
	// Write stores content atomically, creating parent directories.
	Write(path string, content []byte) error
	Delete(path string) error
	// Root is the absolute directory blobs live under.
	Root() string
}
