package wishlist

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	// ErrNotFound covers unknown wishlists, items and access tokens.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent reservation already won.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the item status forbids the operation (archived, fully funded, unpriced).
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidAmount means a contribution amount is non-positive, too large or unparseable.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput covers malformed fields (titles, names, currency).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized means an owner-only operation ran without a matching owner identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the owner tried to reserve or contribute to their own item.
	ErrForbidden = errors.New("forbidden")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Msg is human-readable and never carries item data or display names.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

func opErr(op string, kind error, msg string) error {
	return OpError{Op: op, Kind: kind, Msg: msg}
}

// KindOf returns the sentinel kind of err, or nil when err is not a domain error.
func KindOf(err error) error {
	for _, k := range []error{
		ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidAmount,
		ErrInvalidInput, ErrUnauthorized, ErrForbidden,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
