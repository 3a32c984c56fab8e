// Package token issues and checks wishlist access tokens.
//
// An access token is the only credential on the public surface: whoever holds it
// can read the wishlist and reserve or contribute to its items. Tokens are drawn
// from crypto/rand and are never derived from wishlist ids or other public fields.
//
// Format: 24 random bytes, base64url without padding (32 chars).
package token
