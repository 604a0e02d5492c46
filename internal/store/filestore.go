package store

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/parlabank/backend/internal/models"
)

// FileStore keeps accounts in a line-oriented text file, one record per line:
//
//	username:credentialHex:balance
//
// Balance is written as a decimal dollar amount. Creation appends a line;
// a balance update rewrites the whole file with that one line replaced,
// preserving every other line verbatim. All writes go through a single mutex
// and land via a temp file + rename so a crash mid-write cannot corrupt the
// file.
type FileStore struct {
	path string

	mu    sync.Mutex
	users map[string]*models.User
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:  path,
		users: make(map[string]*models.User),
	}
}

func (s *FileStore) Load() ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[STORE] %s does not exist yet, starting with no accounts", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	var loaded []*models.User
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		u, err := parseRecord(line)
		if err != nil {
			log.Printf("[STORE] skipping malformed line %d: %v", lineNo, err)
			continue
		}
		if _, dup := s.users[u.Username]; dup {
			log.Printf("[STORE] skipping duplicate record for %q on line %d", u.Username, lineNo)
			continue
		}
		s.users[u.Username] = u
		loaded = append(loaded, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return loaded, nil
}

func parseRecord(line string) (*models.User, error) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("want username:credential:balance, got %q", line)
	}
	balance, err := models.ParseAmount(parts[2])
	if err != nil {
		return nil, fmt.Errorf("bad balance %q for user %q", parts[2], parts[0])
	}
	return &models.User{
		Username:   parts[0],
		Credential: parts[1],
		Balance:    balance,
	}, nil
}

func formatRecord(u *models.User) string {
	return fmt.Sprintf("%s:%s:%s", u.Username, u.Credential, models.FormatAmount(u.Balance))
}

func (s *FileStore) FindByUsername(username string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username]
}

func (s *FileStore) Create(username, credential string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, ErrDuplicateUser
	}

	u := &models.User{Username: username, Credential: credential}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	if _, err := fmt.Fprintln(f, formatRecord(u)); err != nil {
		f.Close()
		return nil, fmt.Errorf("append to %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", s.path, err)
	}

	s.users[username] = u
	log.Printf("[STORE] created account %q", username)
	return u, nil
}

// PersistBalance rewrites the file with the user's line replaced. Lines that
// do not belong to the user, including ones Load skipped as malformed, are
// copied through untouched.
func (s *FileStore) PersistBalance(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.users[u.Username]; !known {
		return ErrUserNotFound
	}

	var out strings.Builder
	replaced := false
	if f, err := os.Open(s.path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if username, _, ok := strings.Cut(line, ":"); ok && username == u.Username {
				out.WriteString(formatRecord(u))
				replaced = true
			} else {
				out.WriteString(line)
			}
			out.WriteByte('\n')
		}
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return fmt.Errorf("read %s: %w", s.path, scanErr)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if !replaced {
		out.WriteString(formatRecord(u))
		out.WriteByte('\n')
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *FileStore) Close() error { return nil }
