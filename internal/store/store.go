// Package store is the system of record for user accounts. Two backends
// implement the same contract: a colon-separated flat file (the default) and
// a postgres table. Both load every record into memory at startup; the
// transaction engine mutates the in-memory records under its own locks and
// calls PersistBalance to push a single record back to durable storage.
package store

import (
	"errors"

	"github.com/parlabank/backend/internal/models"
)

var (
	// ErrDuplicateUser is returned by Create when the username is taken.
	ErrDuplicateUser = errors.New("username already exists")
	// ErrUserNotFound is returned by PersistBalance when the record is not
	// known to the store.
	ErrUserNotFound = errors.New("user not found")
)

// Store is the persistence contract for user accounts.
type Store interface {
	// Load reads every durable record into memory, skipping and reporting
	// malformed entries. It must be called once before any other method.
	Load() ([]*models.User, error)

	// FindByUsername returns the in-memory record for username, or nil.
	FindByUsername(username string) *models.User

	// Create adds a new account with a zero balance. It fails with
	// ErrDuplicateUser without mutating any state if the username is taken.
	Create(username, credential string) (*models.User, error)

	// PersistBalance writes the record's current balance back to durable
	// storage. Writes are serialized internally; concurrent persists for
	// different users must not corrupt each other's records.
	PersistBalance(u *models.User) error

	// Count returns the number of loaded accounts.
	Count() int

	Close() error
}
