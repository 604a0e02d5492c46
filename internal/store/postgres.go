package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lib/pq"
	"github.com/parlabank/backend/internal/models"
)

const pqUniqueViolation = "23505"

// PostgresStore backs the account contract with a users table
// (username TEXT PRIMARY KEY, credential TEXT, balance BIGINT minor units).
// Like the file store it serves reads from memory after Load and pushes
// balance changes back row by row.
type PostgresStore struct {
	db *sql.DB

	mu    sync.Mutex
	users map[string]*models.User
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		users: make(map[string]*models.User),
	}
}

func (s *PostgresStore) Load() ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT username, credential, balance FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	var loaded []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.Username, &u.Credential, &u.Balance); err != nil {
			log.Printf("[STORE] skipping unreadable users row: %v", err)
			continue
		}
		s.users[u.Username] = u
		loaded = append(loaded, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return loaded, nil
}

func (s *PostgresStore) FindByUsername(username string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username]
}

func (s *PostgresStore) Create(username, credential string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, ErrDuplicateUser
	}

	_, err := s.db.Exec(
		`INSERT INTO users (username, credential, balance) VALUES ($1, $2, 0)`,
		username, credential,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("insert user %q: %w", username, err)
	}

	u := &models.User{Username: username, Credential: credential}
	s.users[username] = u
	log.Printf("[STORE] created account %q", username)
	return u, nil
}

func (s *PostgresStore) PersistBalance(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.users[u.Username]; !known {
		return ErrUserNotFound
	}

	res, err := s.db.Exec(
		`UPDATE users SET balance = $1, updated_at = NOW() WHERE username = $2`,
		u.Balance, u.Username,
	)
	if err != nil {
		return fmt.Errorf("persist balance for %q: %w", u.Username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
