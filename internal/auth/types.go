package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// strictly alphanumeric, 1-50 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,50}$`)

const (
	// maxUsernameLength is the maximum allowed username length.
	maxUsernameLength = 50

	// maxPasswordLength is the maximum allowed password length.
	maxPasswordLength = 100
)

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-50 alphanumeric characters.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// IsValidPassword checks if a password meets format requirements.
// Passwords must be 1-100 characters; content is otherwise unrestricted.
func IsValidPassword(password string) bool {
	return password != "" && len(password) <= maxPasswordLength
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleOperator can switch routes and query matrix status.
	RoleOperator Role = "operator"

	// RoleViewer can query matrix status only.
	RoleViewer Role = "viewer"

	// RoleAdmin has full control: switching, querying, link management,
	// and reading the audit trail.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid account roles.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if the role is a recognised account role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Account represents a configured user account.
type Account struct {
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"` // never serialised
	Role         Role         `json:"role"`
	Permissions  []Permission `json:"permissions"`
}

// Session represents an authenticated session bound to a client address.
// Role and Permissions are snapshotted at login; a config change takes
// effect on the next login, not mid-session.
type Session struct {
	ID          string       `json:"id"`
	Token       string       `json:"-"` // never serialised
	Username    string       `json:"username"`
	ClientAddr  string       `json:"client_addr"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
}

// Can reports whether the session's permission snapshot includes perm.
// The empty permission means "any authenticated session".
func (s *Session) Can(perm Permission) bool {
	if perm == "" {
		return true
	}
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrInvalidFormat      = errors.New("invalid credential format")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account temporarily locked")
	ErrIPNotAllowed       = errors.New("client address not allowed")
	ErrSessionInvalid     = errors.New("invalid or expired session")
	ErrForbidden          = errors.New("insufficient permissions")
)
