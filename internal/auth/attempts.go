package auth

import (
	"fmt"
	"sync"
	"time"
)

// AttemptTracker counts failed login attempts per (client address, username)
// pair and enforces a time-boxed lockout once the threshold is reached.
//
// Lockouts expire lazily: the first check after the lockout window clears
// both the lock and the attempt count, so the client starts fresh.
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[string]int
	lockedAt map[string]time.Time

	maxAttempts int
	lockout     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewAttemptTracker creates a tracker that locks a (client, username) pair
// for the lockout duration after maxAttempts consecutive failures.
func NewAttemptTracker(maxAttempts int, lockout time.Duration) *AttemptTracker {
	return &AttemptTracker{
		attempts:    make(map[string]int),
		lockedAt:    make(map[string]time.Time),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// key scopes tracking to the (client address, username) pair so one
// client hammering one account cannot lock out other clients.
func (t *AttemptTracker) key(clientAddr, username string) string {
	return fmt.Sprintf("%s:%s", clientAddr, username)
}

// IsLocked reports whether the pair is currently locked out, and if so,
// how long until the lock expires.
func (t *AttemptTracker) IsLocked(clientAddr, username string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.key(clientAddr, username)
	lockedAt, ok := t.lockedAt[k]
	if !ok {
		return false, 0
	}

	elapsed := t.now().Sub(lockedAt)
	if elapsed >= t.lockout {
		delete(t.lockedAt, k)
		delete(t.attempts, k)
		return false, 0
	}

	return true, t.lockout - elapsed
}

// RecordFailure registers a failed attempt for the pair and returns true
// if this failure triggered a lockout.
func (t *AttemptTracker) RecordFailure(clientAddr, username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.key(clientAddr, username)
	t.attempts[k]++
	if t.attempts[k] >= t.maxAttempts {
		t.lockedAt[k] = t.now()
		return true
	}
	return false
}

// Clear resets tracking for the pair after a successful login.
func (t *AttemptTracker) Clear(clientAddr, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.key(clientAddr, username)
	delete(t.attempts, k)
	delete(t.lockedAt, k)
}

// Remaining returns how many failures the pair has left before lockout.
func (t *AttemptTracker) Remaining(clientAddr, username string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	left := t.maxAttempts - t.attempts[t.key(clientAddr, username)]
	if left < 0 {
		return 0
	}
	return left
}
