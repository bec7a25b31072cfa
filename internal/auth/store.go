package auth

import (
	"fmt"

	"github.com/openav/matrix-gate/internal/infrastructure/config"
)

// CredentialStore holds the configured accounts, indexed by username.
// Accounts come from config.yaml and never change at runtime; a config
// change requires a restart, which also clears all sessions.
type CredentialStore struct {
	accounts map[string]Account
}

// NewCredentialStore validates and indexes the configured accounts.
func NewCredentialStore(cfgs []config.AccountConfig) (*CredentialStore, error) {
	s := &CredentialStore{accounts: make(map[string]Account, len(cfgs))}

	for _, c := range cfgs {
		if !IsValidUsername(c.Username) {
			return nil, fmt.Errorf("account %q: username must be 1-50 alphanumeric characters", c.Username)
		}
		if c.PasswordHash == "" {
			return nil, fmt.Errorf("account %q: password_hash is required", c.Username)
		}
		role := Role(c.Role)
		if !IsValidRole(role) {
			return nil, fmt.Errorf("account %q: unknown role %q", c.Username, c.Role)
		}
		if _, exists := s.accounts[c.Username]; exists {
			return nil, fmt.Errorf("account %q: duplicate username", c.Username)
		}

		perms := make([]Permission, 0, len(c.Permissions))
		for _, p := range c.Permissions {
			switch perm := Permission(p); perm {
			case PermSwitch, PermQuery, PermConfig:
				perms = append(perms, perm)
			default:
				return nil, fmt.Errorf("account %q: unknown permission %q", c.Username, p)
			}
		}

		s.accounts[c.Username] = Account{
			Username:     c.Username,
			PasswordHash: c.PasswordHash,
			Role:         role,
			Permissions:  perms,
		}
	}

	return s, nil
}

// Lookup returns the account for a username, if configured.
func (s *CredentialStore) Lookup(username string) (Account, bool) {
	acct, ok := s.accounts[username]
	return acct, ok
}

// Len returns the number of configured accounts.
func (s *CredentialStore) Len() int {
	return len(s.accounts)
}
