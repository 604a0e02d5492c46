package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parlabank/backend/internal/models"
)

func newTestStore(t *testing.T, contents string) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.txt")
	if contents != "" {
		assert.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}
	return NewFileStore(path), path
}

func TestFileStore_Load(t *testing.T) {
	t.Run("missing file yields no accounts", func(t *testing.T) {
		s, _ := newTestStore(t, "")
		users, err := s.Load()
		assert.NoError(t, err)
		assert.Empty(t, users)
		assert.Equal(t, 0, s.Count())
	})

	t.Run("parses records and balances", func(t *testing.T) {
		s, _ := newTestStore(t, "alice:abc$def:100.00\nbob:123$456:0.00\n")
		users, err := s.Load()
		assert.NoError(t, err)
		assert.Len(t, users, 2)

		alice := s.FindByUsername("alice")
		assert.NotNil(t, alice)
		assert.Equal(t, int64(10000), alice.Balance)
		assert.Equal(t, "abc$def", alice.Credential)
	})

	t.Run("skips malformed lines without aborting", func(t *testing.T) {
		s, _ := newTestStore(t, "alice:abc:100.00\nnot a record\nbob:def:garbage\ncarol:ghi:5.00\n")
		users, err := s.Load()
		assert.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Nil(t, s.FindByUsername("bob"))
		assert.NotNil(t, s.FindByUsername("carol"))
	})

	t.Run("skips duplicate usernames", func(t *testing.T) {
		s, _ := newTestStore(t, "alice:abc:100.00\nalice:xyz:999.00\n")
		users, err := s.Load()
		assert.NoError(t, err)
		assert.Len(t, users, 1)
		assert.Equal(t, int64(10000), s.FindByUsername("alice").Balance)
	})
}

func TestFileStore_Create(t *testing.T) {
	s, path := newTestStore(t, "")
	_, err := s.Load()
	assert.NoError(t, err)

	u, err := s.Create("alice", "abc$def")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), u.Balance)

	_, err = s.Create("alice", "other")
	assert.ErrorIs(t, err, ErrDuplicateUser)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "alice:abc$def:0.00\n", string(data))
}

func TestFileStore_PersistBalance(t *testing.T) {
	t.Run("rewrites only the matching line", func(t *testing.T) {
		s, path := newTestStore(t, "alice:abc:100.00\nbob:def:20.00\n")
		_, err := s.Load()
		assert.NoError(t, err)

		alice := s.FindByUsername("alice")
		alice.Balance = 15000
		assert.NoError(t, s.PersistBalance(alice))

		data, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.Equal(t, "alice:abc:150.00\nbob:def:20.00\n", string(data))
	})

	t.Run("preserves lines it could not parse", func(t *testing.T) {
		s, path := newTestStore(t, "alice:abc:100.00\nthis line is broken\n")
		_, err := s.Load()
		assert.NoError(t, err)

		alice := s.FindByUsername("alice")
		alice.Balance = 5000
		assert.NoError(t, s.PersistBalance(alice))

		data, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.Equal(t, "alice:abc:50.00\nthis line is broken\n", string(data))
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		s, _ := newTestStore(t, "")
		_, err := s.Load()
		assert.NoError(t, err)
		err = s.PersistBalance(&models.User{Username: "ghost"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestFileStore_RoundTrip(t *testing.T) {
	s, path := newTestStore(t, "")
	_, err := s.Load()
	assert.NoError(t, err)

	_, err = s.Create("alice", "cred1")
	assert.NoError(t, err)
	_, err = s.Create("bob", "cred2")
	assert.NoError(t, err)

	alice := s.FindByUsername("alice")
	alice.Balance = 12345
	assert.NoError(t, s.PersistBalance(alice))

	reloaded := NewFileStore(path)
	users, err := reloaded.Load()
	assert.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, int64(12345), reloaded.FindByUsername("alice").Balance)
	assert.Equal(t, "cred2", reloaded.FindByUsername("bob").Credential)
	assert.Equal(t, int64(0), reloaded.FindByUsername("bob").Balance)
}
