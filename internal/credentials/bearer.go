package credentials

import (
	"errors"
	"strings"
)

const BearerPrefix = "Bearer "

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'")
)

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	token, found := strings.CutPrefix(header, BearerPrefix)
	token = strings.TrimSpace(token)
	if !found || token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidAuthHeader
	}
	return token, nil
}
