package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanriapp/kanri/internal/models"
)

func TestSessionFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s := &Session{
		AccessToken:  "token123",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		RefreshToken: "refresh123",
		User:         &models.Identity{ID: "U1", Email: "dev@example.com"},
	}
	require.NoError(t, SaveSessionFile(path, s))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := LoadSessionFile(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.AccessToken, loaded.AccessToken)
	assert.Equal(t, s.User.ID, loaded.User.ID)
	assert.True(t, s.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestLoadSessionFile_Missing(t *testing.T) {
	s, err := LoadSessionFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestLoadSessionFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadSessionFile(path)
	assert.Error(t, err)
}

func TestLoadSessionFile_EmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":""}`), 0o600))

	s, err := LoadSessionFile(path)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestClearSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	require.NoError(t, ClearSessionFile(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	require.NoError(t, ClearSessionFile(path))
}
