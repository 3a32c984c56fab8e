// Package v1 defines the wishsync realtime protocol v1 contract.
//
// The protocol is an invalidation feed: the server pushes "something changed
// in wishlist X" and clients re-read state over HTTP. Envelopes never carry
// item state. This package is shared between the server, the sync client and
// tools so the wire format stays authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the WebSocket subprotocol name negotiated on upgrade.
const Subprotocol = "wishsync.v1"

// Type constants (wire-stable).
const (
	// TypeSubscribed confirms the subscription (server -> client, once per connection).
	TypeSubscribed = "subscribed"
	// TypeSignal announces a change in the subscribed wishlist (server -> client).
	TypeSignal = "signal"
	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Signal events (wire-stable).
const (
	EventItemCreated       = "item_created"
	EventItemUpdated       = "item_updated"
	EventItemArchived      = "item_archived"
	EventItemUnarchived    = "item_unarchived"
	EventItemReserved      = "item_reserved"
	EventItemUnreserved    = "item_unreserved"
	EventContributionAdded = "contribution_added"
	EventWishlistUpdated   = "wishlist_updated"
)

// KnownEvent reports whether ev is a defined signal event.
func KnownEvent(ev string) bool {
	switch ev {
	case EventItemCreated,
		EventItemUpdated,
		EventItemArchived,
		EventItemUnarchived,
		EventItemReserved,
		EventItemUnreserved,
		EventContributionAdded,
		EventWishlistUpdated:
		return true
	default:
		return false
	}
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V          string          `json:"v"`
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	WishlistID string          `json:"wishlist_id,omitempty"`
	TS         time.Time       `json:"ts,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeSubscribed, TypeError:
		return nil
	case TypeSignal:
		if strings.TrimSpace(e.WishlistID) == "" {
			return errors.New("missing field: wishlist_id")
		}
		var p SignalPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("invalid signal payload: %w", err)
		}
		if !KnownEvent(p.Event) {
			return fmt.Errorf("unknown event: %q", p.Event)
		}
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// SubscribedPayload confirms which wishlist the connection watches.
type SubscribedPayload struct {
	WishlistID string `json:"wishlist_id"`
	SessionID  string `json:"session_id"`
}

// SignalPayload is the invalidation hint itself.
type SignalPayload struct {
	Event      string `json:"event"`
	WishlistID string `json:"wishlist_id"`
	ItemID     string `json:"item_id,omitempty"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(typ, id, wishlistID string, ts time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		V:          Version,
		Type:       typ,
		ID:         id,
		WishlistID: wishlistID,
		TS:         ts.UTC(),
		Payload:    raw,
	}, nil
}
