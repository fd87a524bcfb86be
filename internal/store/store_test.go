package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendTests runs the common suite against any Backend implementation.
func backendTests(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Helper()

	t.Run("LoadEmpty", func(t *testing.T) {
		b := newBackend(t)
		db, err := b.Load()
		require.NoError(t, err)
		assert.NotNil(t, db.Users)
		assert.Empty(t, db.Users)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		b := newBackend(t)
		db := NewUserDatabase()
		_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
		require.NoError(t, err)
		_, err = db.Signup("bob", "bob@example.com", "Xyz789#$", fixedNow)
		require.NoError(t, err)
		require.NoError(t, b.Save(db))

		got, err := b.Load()
		require.NoError(t, err)
		require.Len(t, got.Users, 2)

		alice := got.Users["alice@example.com"]
		require.NotNil(t, alice)
		assert.Equal(t, "alice@example.com", alice.Email)
		assert.Equal(t, "alice", alice.Username)
		assert.True(t, alice.CreatedAt.Equal(fixedNow))

		_, err = got.Authenticate("bob@example.com", "Xyz789#$")
		assert.NoError(t, err)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		b := newBackend(t)
		db := NewUserDatabase()
		_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
		require.NoError(t, err)
		require.NoError(t, b.Save(db))

		require.NoError(t, b.Save(NewUserDatabase()))

		got, err := b.Load()
		require.NoError(t, err)
		assert.Empty(t, got.Users)
	})
}

func TestJSONStore(t *testing.T) {
	backendTests(t, func(t *testing.T) Backend {
		return NewJSONStore(filepath.Join(t.TempDir(), "user_database.json"))
	})
}

func TestBoltStore(t *testing.T) {
	backendTests(t, func(t *testing.T) Backend {
		b, err := NewBoltStore(filepath.Join(t.TempDir(), "users.bolt"))
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestSQLiteStore(t *testing.T) {
	backendTests(t, func(t *testing.T) Backend {
		b, err := NewSQLiteStore(filepath.Join(t.TempDir(), "users.db"))
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestJSONStore_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_database.json")
	s := NewJSONStore(path)

	db := NewUserDatabase()
	_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)
	require.NoError(t, s.Save(db))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "{\n    \"users\": {\n        \"alice@example.com\": {\n"))
	assert.Contains(t, content, `"username": "alice"`)
	assert.Contains(t, content, `"created_at": "2025-03-14T09:26:53Z"`)
	assert.NotContains(t, content, `"Email"`)
}

func TestJSONStore_ReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_database.json")
	legacy := `{
    "users": {
        "a@b.com": {
            "username": "ab",
            "password": "salt:hash",
            "created_at": "2024-01-02T03:04:05.678901",
            "last_login": "2024-01-03T03:04:05.678901"
        }
    }
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	db, err := NewJSONStore(path).Load()
	require.NoError(t, err)

	rec, ok := db.Lookup("a@b.com")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", rec.Email)
	assert.Equal(t, "ab", rec.Username)
	assert.Equal(t, 3, rec.LastLogin.Day())
}

func TestJSONStore_CorruptFileIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_database.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewJSONStore(path).Load()
	require.Error(t, err)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "parse", se.Op)
	assert.Equal(t, path, se.Path)
}

func TestJSONStore_NullUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_database.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users": null}`), 0o600))

	db, err := NewJSONStore(path).Load()
	require.NoError(t, err)
	assert.NotNil(t, db.Users)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open("json", filepath.Join(dir, "u.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, b)

	b, err = Open("bolt", filepath.Join(dir, "u.bolt"))
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, b)
	require.NoError(t, b.Close())

	_, err = Open("mongo", filepath.Join(dir, "u"))
	assert.Error(t, err)
}
