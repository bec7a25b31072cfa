// Package auth implements credential verification, brute-force lockout,
// client address allow-listing, and session management for Matrix Gate.
//
// Accounts are declared statically in configuration with Argon2id password
// hashes. Sessions are opaque random tokens held in memory; restarting the
// gateway invalidates all sessions.
package auth
