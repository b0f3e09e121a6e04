package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher computes the stored digest of a password mixed with its salt.
type Hasher interface {
	Name() string
	Digest(password, salt string) string
}

var (
	_ Hasher = SHA256Hasher{}
	_ Hasher = (*Argon2idHasher)(nil)
)

// SHA256Hasher stores base64(sha256(password || salt)).
type SHA256Hasher struct{}

func (SHA256Hasher) Name() string { return "sha256" }

func (SHA256Hasher) Digest(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Argon2idHasher derives a 256-bit memory-hard digest from password and salt.
type Argon2idHasher struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// NewArgon2idHasher returns a hasher with the OWASP recommended parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		KeyLength:   32,
	}
}

func (a *Argon2idHasher) Name() string { return "argon2id" }

func (a *Argon2idHasher) Digest(password, salt string) string {
	key := argon2.IDKey([]byte(password), []byte(salt), a.Iterations, a.Memory, a.Parallelism, a.KeyLength)
	return base64.StdEncoding.EncodeToString(key)
}

// HasherByName resolves a configured hasher name.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256":
		return SHA256Hasher{}, nil
	case "argon2id":
		return NewArgon2idHasher(), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}
