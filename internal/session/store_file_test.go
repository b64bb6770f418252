package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiplatform/pkg/platform/sentinel"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips plain json with two keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")
		b := NewFileBackend(path)

		_, err := b.Load(ctx)
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		require.NoError(t, b.Save(ctx, Session{Token: "tok", User: testUser()}))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"token":"tok"`)
		assert.Contains(t, string(raw), `"user":{`)

		got, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", got.Token)
		assert.Equal(t, "alice", got.User.Username)

		require.NoError(t, b.Delete(ctx))
		require.NoError(t, b.Delete(ctx), "deleting twice is fine")
		_, err = b.Load(ctx)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("sealed file hides the token", func(t *testing.T) {
		key, err := ParseSealKey(strings.Repeat("ab", 32))
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "session.bin")
		b := NewFileBackend(path, WithSealKey(key))

		require.NoError(t, b.Save(ctx, Session{Token: "secret-token", User: testUser()}))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret-token")

		got, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret-token", got.Token)

		otherKey, err := ParseSealKey(strings.Repeat("cd", 32))
		require.NoError(t, err)
		_, err = NewFileBackend(path, WithSealKey(otherKey)).Load(ctx)
		assert.ErrorIs(t, err, sentinel.ErrCorrupt)
	})

	t.Run("partial session is corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"token":"tok","user":null}`), 0o600))
		_, err := NewFileBackend(path).Load(ctx)
		assert.ErrorIs(t, err, sentinel.ErrCorrupt)
	})

	t.Run("garbage is corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{{{`), 0o600))
		_, err := NewFileBackend(path).Load(ctx)
		assert.ErrorIs(t, err, sentinel.ErrCorrupt)
	})
}

func TestParseSealKey(t *testing.T) {
	key, err := ParseSealKey("")
	require.NoError(t, err)
	assert.Nil(t, key)

	_, err = ParseSealKey("short")
	assert.ErrorIs(t, err, sentinel.ErrInvalid)

	_, err = ParseSealKey(strings.Repeat("ab", 16))
	assert.ErrorIs(t, err, sentinel.ErrInvalid)
}
