package credentials

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomString returns n characters drawn uniformly from alphabet using
// crypto/rand. Bytes outside the masked range are rejected to avoid modulo bias.
func randomString(n int) (string, error) {
	const mask = 63 // smallest 2^k-1 >= len(alphabet)-1

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			idx := int(b & mask)
			if idx >= len(alphabet) {
				continue
			}
			out = append(out, alphabet[idx])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
