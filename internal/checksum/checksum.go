// Package checksum hashes blob contents and cache keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Key returns a cache key for text scoped by namespace, so equal text under
// different namespaces (e.g. embedding models) never collides.
func Key(namespace, text string) string {
	return namespace + ":" + Sum([]byte(text))
}
