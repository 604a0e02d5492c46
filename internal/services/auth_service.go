package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/parlabank/backend/internal/models"
	"github.com/parlabank/backend/internal/store"
)

// MaxAuthAttempts is how many tries a session gets at each login prompt
// before the server hangs up on it.
const MaxAuthAttempts = 3

// LoginResult classifies a login attempt.
type LoginResult int

const (
	LoginSuccess LoginResult = iota
	LoginUnknownUsername
	LoginWrongPassword
	LoginAlreadyActive
)

var (
	// ErrUsernameTaken is returned by CreateAccount for a duplicate username.
	ErrUsernameTaken = errors.New("username taken")
	// ErrInvalidSignup is returned by CreateAccount when the requested
	// credentials fail validation.
	ErrInvalidSignup = errors.New("invalid signup request")
)

type createAccountRequest struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Password string `validate:"required,min=6,max=128"`
}

// AuthService authenticates users against the account store and claims their
// username in the session registry on success, so a second login for an
// already-active user is rejected atomically with password verification.
type AuthService struct {
	store    store.Store
	registry *SessionRegistry
	validate *validator.Validate
}

func NewAuthService(st store.Store, registry *SessionRegistry) *AuthService {
	return &AuthService{
		store:    st,
		registry: registry,
		validate: validator.New(),
	}
}

// FindUser reports whether an account exists for username.
func (s *AuthService) FindUser(username string) bool {
	return s.store.FindByUsername(username) != nil
}

// Recipient resolves username to its account record, or nil. Used to look up
// transfer recipients without authenticating them.
func (s *AuthService) Recipient(username string) *models.User {
	return s.store.FindByUsername(username)
}

// Login verifies the password for username and, on success, claims the
// username for owner. The user record is only returned on LoginSuccess.
func (s *AuthService) Login(username, password, owner string) (LoginResult, *models.User) {
	user := s.store.FindByUsername(username)
	if user == nil {
		return LoginUnknownUsername, nil
	}
	if !VerifyPassword(password, user.Credential) {
		return LoginWrongPassword, nil
	}
	if !s.registry.TryAcquire(username, owner) {
		log.Printf("[AUTH] rejected login for %q, already active", username)
		return LoginAlreadyActive, nil
	}
	log.Printf("[AUTH] user %q logged in", username)
	return LoginSuccess, user
}

// CreateAccount validates the requested credentials, creates a zero-balance
// account and claims the new username for owner.
func (s *AuthService) CreateAccount(username, password, owner string) (*models.User, error) {
	req := createAccountRequest{Username: username, Password: password}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}

	credential, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.Create(username, credential)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if !s.registry.TryAcquire(username, owner) {
		// The name was free a moment ago; losing this race is possible only
		// if another session created and claimed it first.
		return nil, ErrUsernameTaken
	}
	log.Printf("[AUTH] created account %q", username)
	return user, nil
}

func derive(password string, salt []byte) []byte {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)

	return argon2.IDKey(
		[]byte(password),
		salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")),
	)
}

// HashPassword derives an argon2id credential, encoded as saltHex$hashHex.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := derive(password, salt)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// VerifyPassword checks password against a stored saltHex$hashHex credential.
func VerifyPassword(password, credential string) bool {
	saltHex, hashHex, ok := strings.Cut(credential, "$")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	got := derive(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
