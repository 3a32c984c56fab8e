package token

import "errors"

// Public, stable errors for callers.
var (
	ErrMalformed = errors.New("access token malformed")
)
