package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateGeneratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "owner")

	first, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, Valid(first), "generated id %q", first)

	second, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owner")
	require.NoError(t, os.WriteFile(path, []byte("not-a-guest\n"), 0o600))

	_, err := LoadOrCreate(path)
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("guest_abc123"))
	assert.False(t, Valid("guest_"))
	assert.False(t, Valid("guest_ABC"))
	assert.False(t, Valid("user_abc"))
	assert.NotEqual(t, New(), New())
}
