package wishlist

import (
	"context"
	"time"
)

// Store persists wishlists, items, reservations and contributions.
//
// Requirements:
//   - MutateItem serializes all writes to one item: fn sees the latest committed
//     record and no other MutateItem on the same item runs until the change is applied.
//   - The ItemChange returned by fn is applied atomically or not at all.
//   - Reads never wait for item locks and may observe a slightly stale record.
//   - Not-found lookups return ErrNotFound (possibly wrapped).
type Store interface {
	CreateWishlist(ctx context.Context, wl Wishlist) error
	GetWishlist(ctx context.Context, id string) (Wishlist, error)
	GetWishlistByToken(ctx context.Context, accessToken string) (Wishlist, error)
	ListWishlists(ctx context.Context, ownerID string) ([]WishlistSummary, error)
	UpdateWishlist(ctx context.Context, id string, fn func(wl *Wishlist) error) (Wishlist, error)

	CreateItem(ctx context.Context, it Item) error
	LoadItem(ctx context.Context, itemID string) (ItemRecord, error)
	LoadWishlistItems(ctx context.Context, wishlistID string) ([]ItemRecord, error)
	MutateItem(ctx context.Context, itemID string, fn MutateFunc) (ItemRecord, error)

	Close() error
}

// MutateFunc inspects the locked record and returns the writes to apply.
// Returning an error aborts the mutation with no effect.
type MutateFunc func(rec ItemRecord) (ItemChange, error)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
