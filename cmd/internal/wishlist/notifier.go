package wishlist

import "context"

// EventKind names the kind of observable change carried by a Signal.
type EventKind string

const (
	EventItemCreated       EventKind = "item_created"
	EventItemUpdated       EventKind = "item_updated"
	EventItemArchived      EventKind = "item_archived"
	EventItemUnarchived    EventKind = "item_unarchived"
	EventItemReserved      EventKind = "item_reserved"
	EventItemUnreserved    EventKind = "item_unreserved"
	EventContributionAdded EventKind = "contribution_added"
	EventWishlistUpdated   EventKind = "wishlist_updated"
)

// Signal is an invalidation hint for one wishlist: "this changed, re-read".
// It deliberately carries no item state.
type Signal struct {
	Kind       EventKind
	WishlistID string
	ItemID     string
}

// Notifier delivers signals to whoever watches a wishlist. Delivery is
// best-effort; Notify must not block on slow subscribers.
type Notifier interface {
	Notify(ctx context.Context, sig Signal)
}

// NopNotifier drops every signal.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Signal) {}

// Observer receives mutation outcomes (used for metrics).
type Observer interface {
	MutationDone(op string, err error)
}

type nopObserver struct{}

func (nopObserver) MutationDone(string, error) {}
