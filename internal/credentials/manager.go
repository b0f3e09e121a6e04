// Package credentials issues and verifies salted password digests and the
// opaque bearer tokens bound to accounts at signup.
package credentials

import (
	"crypto/subtle"
	"fmt"
)

const (
	SaltLength  = 32
	TokenLength = 32
)

// Issued is the credential material persisted for a new account.
type Issued struct {
	Salt  string
	Hash  string
	Token string
}

// Manager issues and verifies credentials with a pluggable Hasher.
type Manager struct {
	hasher Hasher
}

// NewManager creates a Manager. A nil hasher falls back to SHA256Hasher.
func NewManager(hasher Hasher) *Manager {
	if hasher == nil {
		hasher = SHA256Hasher{}
	}
	return &Manager{hasher: hasher}
}

// Issue generates a fresh salt, the digest of password+salt and an
// independent session token. Password policy is enforced by the caller.
func (m *Manager) Issue(password string) (Issued, error) {
	salt, err := randomString(SaltLength)
	if err != nil {
		return Issued{}, fmt.Errorf("generate salt: %w", err)
	}
	token, err := randomString(TokenLength)
	if err != nil {
		return Issued{}, fmt.Errorf("generate token: %w", err)
	}
	return Issued{
		Salt:  salt,
		Hash:  m.hasher.Digest(password, salt),
		Token: token,
	}, nil
}

// Verify reports whether password+salt digests to expectedHash.
func (m *Manager) Verify(password, salt, expectedHash string) bool {
	computed := m.hasher.Digest(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(expectedHash)) == 1
}
