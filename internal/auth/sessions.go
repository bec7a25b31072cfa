package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionTokenBytes is the entropy of a session token (hex-encoded to 64 chars).
const sessionTokenBytes = 32

// janitorInterval is how often expired sessions are swept.
const janitorInterval = 1 * time.Minute

// SessionStore holds authenticated sessions in memory, keyed by token.
// Sessions expire after an idle TTL; a background janitor sweeps them.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl time.Duration

	stopOnce sync.Once
	stop     chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// NewSessionStore creates a store whose sessions expire after ttl of
// inactivity. The caller must Close the store to stop the janitor.
func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	go s.janitor()
	return s
}

// Create mints a new session for the username bound to the client
// address, snapshotting the role and permissions. The returned token is
// the caller's only copy; it is not recoverable.
func (s *SessionStore) Create(username, clientAddr string, role Role, perms []Permission) (*Session, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := s.now()
	sess := &Session{
		ID:          "ses-" + uuid.NewString()[:8],
		Token:       token,
		Username:    username,
		ClientAddr:  clientAddr,
		Role:        role,
		Permissions: perms,
		CreatedAt:   now,
		LastSeenAt:  now,
	}

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	return sess, nil
}

// Get looks up a session by token, refreshing its idle timer.
// Expired sessions are removed and reported as missing.
func (s *SessionStore) Get(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, false
	}

	now := s.now()
	if now.Sub(sess.LastSeenAt) > s.ttl {
		delete(s.sessions, token)
		return nil, false
	}

	sess.LastSeenAt = now
	return sess, true
}

// Delete removes a session by token. Deleting an unknown token is a no-op.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// DeleteForUser removes every session belonging to the username.
// Used when an account disappears from configuration.
func (s *SessionStore) DeleteForUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if sess.Username == username {
			delete(s.sessions, token)
		}
	}
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the janitor. Safe to call more than once.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// janitor periodically removes sessions past their idle TTL.
func (s *SessionStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *SessionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, sess := range s.sessions {
		if now.Sub(sess.LastSeenAt) > s.ttl {
			delete(s.sessions, token)
		}
	}
}
