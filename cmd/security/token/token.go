package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const (
	// AccessTokenBytes is the amount of entropy per access token.
	AccessTokenBytes = 24

	// AccessTokenLen is the encoded length of an access token.
	AccessTokenLen = 32
)

// NewAccessToken returns a fresh URL-safe access token.
func NewAccessToken() (string, error) {
	b := make([]byte, AccessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// URL-safe, no padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Normalize trims s and checks the access token shape.
// It lets callers reject garbage before touching storage.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != AccessTokenLen {
		return "", ErrMalformed
	}
	if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
		return "", ErrMalformed
	}
	return s, nil
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
