// Package tokens implements single-use, time-boxed download tokens.
// A token is an opaque capability: whoever presents it gets the mapped
// file path exactly once, inside the TTL, with no other authentication.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

// ErrNotFound covers every miss: unknown token, expired token, and a token
// that was already redeemed. Callers must not be able to tell these apart.
var ErrNotFound = errors.New("download token not found")

// Store maps opaque tokens to file paths. The store exclusively owns token
// lifetime; a successful Resolve removes the entry.
type Store interface {
	// Issue creates a token granting access to path until ttl elapses.
	Issue(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Resolve redeems a token. It is an atomic get-and-delete: the first
	// successful call returns the path and consumes the entry, any later
	// call (and any call after expiry) returns ErrNotFound.
	Resolve(ctx context.Context, token string) (string, error)
}

const tokenBytes = 32

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
