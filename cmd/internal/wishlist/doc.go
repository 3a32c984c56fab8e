// Package wishlist holds the authoritative gift-list state machine.
//
// Service is the mutation coordinator: every reservation, contribution and
// owner edit runs through Store.MutateItem, which serializes writes per item
// and applies them atomically. OwnerView and GuestView are the pure snapshot
// functions that turn raw records into role-scoped views. The Notifier is told
// about every observable change so realtime subscribers can refetch.
package wishlist
