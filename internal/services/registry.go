package services

import (
	"log"
	"sync"
)

// SessionRegistry tracks which usernames have a live session. Each username
// may be held by at most one session at a time; a session identifies itself
// with an owner token so only the holder can release the name.
type SessionRegistry struct {
	mu     sync.Mutex
	owners map[string]string // username -> owner token
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{owners: make(map[string]string)}
}

// TryAcquire claims username for owner. It returns false if another session
// already holds the name.
func (r *SessionRegistry) TryAcquire(username, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, active := r.owners[username]; active {
		if holder == owner {
			return true
		}
		return false
	}
	r.owners[username] = owner
	return true
}

// Release drops the claim on username if owner holds it. Releasing a name
// held by someone else is a no-op so a stale session cannot kick out a live
// one.
func (r *SessionRegistry) Release(username, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	holder, active := r.owners[username]
	if !active {
		return
	}
	if holder != owner {
		log.Printf("[REGISTRY] ignoring release of %q by non-holder", username)
		return
	}
	delete(r.owners, username)
}

// Active returns the number of usernames currently held.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
