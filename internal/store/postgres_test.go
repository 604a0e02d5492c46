package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPostgresStore_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)

	mock.ExpectQuery("SELECT username, credential, balance FROM users ORDER BY username").
		WillReturnRows(sqlmock.NewRows([]string{"username", "credential", "balance"}).
			AddRow("alice", "abc$def", int64(10000)).
			AddRow("bob", "123$456", int64(0)))

	users, err := s.Load()
	assert.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, int64(10000), s.FindByUsername("alice").Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	mock.ExpectQuery("SELECT username, credential, balance FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"username", "credential", "balance"}))
	_, err = s.Load()
	assert.NoError(t, err)

	t.Run("inserts a zero balance row", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs("alice", "abc$def").
			WillReturnResult(sqlmock.NewResult(1, 1))

		u, err := s.Create("alice", "abc$def")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), u.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate in memory", func(t *testing.T) {
		_, err := s.Create("alice", "other")
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("unique violation maps to ErrDuplicateUser", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs("bob", "cred").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := s.Create("bob", "cred")
		assert.ErrorIs(t, err, ErrDuplicateUser)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_PersistBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	mock.ExpectQuery("SELECT username, credential, balance FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"username", "credential", "balance"}).
			AddRow("alice", "abc", int64(10000)))
	_, err = s.Load()
	assert.NoError(t, err)

	alice := s.FindByUsername("alice")
	alice.Balance = 15000

	mock.ExpectExec("UPDATE users SET balance").
		WithArgs(int64(15000), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.PersistBalance(alice))
	assert.NoError(t, mock.ExpectationsWereMet())
}
