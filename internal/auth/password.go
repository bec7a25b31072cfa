package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for newly minted hashes. Verification reads
// the parameters out of the stored PHC string, so hashes generated with
// other settings keep working after these change.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword derives an Argon2id hash of the password with a fresh
// random salt and encodes it as a PHC string, the format the account
// table in config.yaml carries.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the Argon2id hash of the password using the
// salt and cost parameters embedded in the PHC string and compares in
// constant time. A malformed PHC string is an error, not a mismatch.
func VerifyPassword(password, encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))

	return subtle.ConstantTimeCompare(p.hash, candidate) == 1, nil
}

// phc is a decoded $argon2id$v=..$m=..,t=..,p=..$salt$hash string.
type phc struct {
	salt    []byte
	hash    []byte
	time    uint32
	memory  uint32
	threads uint8
}

func parsePHC(encoded string) (phc, error) {
	var p phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 {
		return p, fmt.Errorf("malformed PHC hash")
	}
	if fields[1] != "argon2id" {
		return p, fmt.Errorf("unsupported algorithm %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("parsing version: %w", err)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, fmt.Errorf("parsing cost parameters: %w", err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return p, fmt.Errorf("decoding salt: %w", err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return p, fmt.Errorf("decoding hash: %w", err)
	}

	return p, nil
}
