package owner

import (
	"errors"
	"net/http"
	"strings"
)

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Authenticate verifies the request's bearer token. A missing token is ErrNoToken.
func Authenticate(r *http.Request, v Verifier) (Identity, error) {
	if v == nil {
		return Identity{}, ErrNoToken
	}
	tok := BearerToken(r)
	if tok == "" {
		return Identity{}, ErrNoToken
	}
	return v.Verify(tok)
}

// Optional returns the verified owner id, or "" when the request is anonymous.
// An invalid token is still an error so clients learn their credential is stale.
func Optional(r *http.Request, v Verifier) (string, error) {
	id, err := Authenticate(r, v)
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id.OwnerID, nil
}
