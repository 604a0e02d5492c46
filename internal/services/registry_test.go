package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()

	t.Run("second acquire for the same username fails", func(t *testing.T) {
		assert.True(t, r.TryAcquire("alice", "session-1"))
		assert.False(t, r.TryAcquire("alice", "session-2"))
		assert.Equal(t, 1, r.Active())
	})

	t.Run("acquire is idempotent for the holder", func(t *testing.T) {
		assert.True(t, r.TryAcquire("alice", "session-1"))
	})

	t.Run("only the holder can release", func(t *testing.T) {
		r.Release("alice", "session-2")
		assert.False(t, r.TryAcquire("alice", "session-3"))

		r.Release("alice", "session-1")
		assert.True(t, r.TryAcquire("alice", "session-3"))
		r.Release("alice", "session-3")
	})

	t.Run("releasing an unheld username is a no-op", func(t *testing.T) {
		r.Release("nobody", "session-1")
		assert.Equal(t, 0, r.Active())
	})
}

func TestSessionRegistry_ConcurrentAcquire(t *testing.T) {
	r := NewSessionRegistry()

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		owner := fmt.Sprintf("session-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("alice", owner) {
				wins <- owner
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	assert.Len(t, winners, 1, "exactly one session may hold a username")
	assert.Equal(t, 1, r.Active())
}
