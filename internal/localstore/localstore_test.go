package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, found, err := fs.Load("session:abc")
	require.NoError(t, err)
	assert.False(t, found)

	doc := map[string]any{
		"isAuthenticated": true,
		"profile":         nil,
		"user": map[string]any{
			"id":       "u1",
			"email":    "a@b.co",
			"photoURL": "",
		},
	}
	require.NoError(t, fs.Save("session:abc", doc))

	_, err = os.Stat(filepath.Join(fs.Dir, "session_abc.toml"))
	require.NoError(t, err)

	got, found, err := fs.Load("session:abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, true, got["isAuthenticated"])
	assert.NotContains(t, got, "profile")

	user, ok := got["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1", user["id"])
	assert.Equal(t, "a@b.co", user["email"])

	require.NoError(t, fs.Remove("session:abc"))
	require.NoError(t, fs.Remove("session:abc"))
	_, found, err = fs.Load("session:abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStorage_CorruptFile(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir, "bad.toml"), []byte("= = ="), 0o644))

	_, _, err = fs.Load("bad")
	assert.Error(t, err)
}

func TestPruneNil(t *testing.T) {
	t.Parallel()

	got := pruneNil(map[string]any{
		"a": nil,
		"b": map[string]any{"c": nil, "d": 1},
		"e": []any{nil, "x"},
	})
	assert.Equal(t, map[string]any{
		"b": map[string]any{"d": 1},
		"e": []any{"x"},
	}, got)
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	ms := NewMemoryStorage()
	doc := map[string]any{"k": "v"}
	require.NoError(t, ms.Save("x", doc))
	doc["k"] = "changed"

	got, found, err := ms.Load("x")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", got["k"])

	require.NoError(t, ms.Remove("x"))
	_, found, _ = ms.Load("x")
	assert.False(t, found)
}
