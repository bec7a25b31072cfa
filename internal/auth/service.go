package auth

import (
	"fmt"
	"time"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
)

// LockoutError reports an active lockout and how long until it expires.
// It unwraps to ErrLocked for errors.Is checks.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account temporarily locked, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error {
	return ErrLocked
}

// Service ties together credential verification, the attempt tracker,
// the client allow-list, and the session store.
type Service struct {
	enabled   bool
	store     *CredentialStore
	attempts  *AttemptTracker
	allowList *IPAllowList
	sessions  *SessionStore
	logger    *logging.Logger

	// dummyHash is verified against when the username is unknown, so
	// the response time does not reveal which usernames exist.
	dummyHash string
}

// NewService builds the auth service from the security section of the
// configuration. The caller must Close the service on shutdown.
func NewService(cfg config.SecurityConfig, logger *logging.Logger) (*Service, error) {
	store, err := NewCredentialStore(cfg.Accounts)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	allowList, err := NewIPAllowList(cfg.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("parsing allowed_ips: %w", err)
	}

	dummyHash, err := HashPassword("matrixgate-dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}

	lockout := time.Duration(cfg.LockoutTime) * time.Second
	sessionTTL := time.Duration(cfg.SessionTTL) * time.Second

	return &Service{
		enabled:   cfg.EnableAuth,
		store:     store,
		attempts:  NewAttemptTracker(cfg.MaxLoginAttempts, lockout),
		allowList: allowList,
		sessions:  NewSessionStore(sessionTTL),
		logger:    logger.With("component", "auth"),
		dummyHash: dummyHash,
	}, nil
}

// Enabled reports whether authentication is enforced.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Authenticate verifies credentials for a client and mints a session.
//
// The checks run in a fixed order: allow-list, input format, lockout,
// then credential verification. Unknown usernames and wrong passwords
// produce the same ErrInvalidCredentials, and both burn an Argon2id
// verification so response timing does not distinguish them.
func (s *Service) Authenticate(clientAddr, username, password string) (*Session, error) {
	if !s.enabled {
		if username == "" {
			username = "anonymous"
		}
		return s.sessions.Create(username, clientAddr, RoleAdmin, rolePermissions[RoleAdmin])
	}

	if !s.allowList.Allows(clientAddr) {
		s.logger.Warn("login from disallowed address", "client", clientAddr)
		return nil, ErrIPNotAllowed
	}

	if !IsValidUsername(username) || !IsValidPassword(password) {
		return nil, ErrInvalidFormat
	}

	if locked, retryAfter := s.attempts.IsLocked(clientAddr, username); locked {
		s.logger.Warn("login while locked out", "client", clientAddr, "username", username)
		return nil, &LockoutError{RetryAfter: retryAfter}
	}

	acct, found := s.store.Lookup(username)
	hash := s.dummyHash
	if found {
		hash = acct.PasswordHash
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	if !found || !ok {
		if lockedNow := s.attempts.RecordFailure(clientAddr, username); lockedNow {
			s.logger.Warn("lockout triggered",
				"client", clientAddr,
				"username", username,
			)
			_, retryAfter := s.attempts.IsLocked(clientAddr, username)
			return nil, &LockoutError{RetryAfter: retryAfter}
		}
		return nil, ErrInvalidCredentials
	}

	s.attempts.Clear(clientAddr, username)

	sess, err := s.sessions.Create(username, clientAddr, acct.Role, PermissionsFor(acct))
	if err != nil {
		return nil, err
	}

	s.logger.Info("login", "username", username, "client", clientAddr, "session", sess.ID)
	return sess, nil
}

// Authorize resolves a session token and checks the required permission
// against the session's snapshot. The empty permission means any live
// session qualifies.
//
// A session whose account has since been removed from configuration is
// destroyed and treated as invalid. With authentication disabled, every
// request is authorised as an anonymous session.
func (s *Service) Authorize(token string, perm Permission) (*Session, error) {
	if !s.enabled {
		return &Session{
			ID:          "ses-open",
			Username:    "anonymous",
			Role:        RoleAdmin,
			Permissions: rolePermissions[RoleAdmin],
		}, nil
	}

	sess, ok := s.sessions.Get(token)
	if !ok {
		return nil, ErrSessionInvalid
	}

	if _, found := s.store.Lookup(sess.Username); !found {
		s.sessions.DeleteForUser(sess.Username)
		return nil, ErrSessionInvalid
	}

	if !sess.Can(perm) {
		return nil, ErrForbidden
	}

	return sess, nil
}

// Logout destroys a session by token. Returns the session that was
// destroyed, if any.
func (s *Service) Logout(token string) (*Session, bool) {
	sess, ok := s.sessions.Get(token)
	if ok {
		s.sessions.Delete(token)
		s.logger.Info("logout", "username", sess.Username, "session", sess.ID)
	}
	return sess, ok
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	return s.sessions.Count()
}

// Close releases background resources.
func (s *Service) Close() {
	s.sessions.Close()
}
