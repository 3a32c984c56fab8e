package wishlist

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is the store used when no database is configured.
//
// Item writes are serialized by a per-item mutex; the store-wide RWMutex only
// guards the maps for the short copy-in/copy-out sections, so writers on
// different items run in parallel and readers never wait for an item lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	wishlists map[string]Wishlist
	byToken   map[string]string   // access_token -> wishlist id
	items     map[string]ItemRecord
	itemOrder map[string][]string // wishlist id -> item ids in creation order

	locks keyedMutex
}

// NewInMemoryStore constructs an empty in-memory Store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		wishlists: make(map[string]Wishlist),
		byToken:   make(map[string]string),
		items:     make(map[string]ItemRecord),
		itemOrder: make(map[string][]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// CreateWishlist inserts a wishlist; ids and access tokens must be unique.
func (s *InMemoryStore) CreateWishlist(ctx context.Context, wl Wishlist) error {
	if wl.ID == "" || wl.OwnerID == "" || wl.AccessToken == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wishlists[wl.ID]; ok {
		return fmt.Errorf("wishlist %s: %w", wl.ID, ErrConflict)
	}
	if _, ok := s.byToken[wl.AccessToken]; ok {
		return fmt.Errorf("access token: %w", ErrConflict)
	}
	s.wishlists[wl.ID] = wl
	s.byToken[wl.AccessToken] = wl.ID
	return nil
}

// GetWishlist returns a wishlist by id.
func (s *InMemoryStore) GetWishlist(ctx context.Context, id string) (Wishlist, error) {
	if err := ctx.Err(); err != nil {
		return Wishlist{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	wl, ok := s.wishlists[id]
	if !ok {
		return Wishlist{}, ErrNotFound
	}
	return wl, nil
}

// GetWishlistByToken returns the wishlist that owns accessToken.
func (s *InMemoryStore) GetWishlistByToken(ctx context.Context, accessToken string) (Wishlist, error) {
	if err := ctx.Err(); err != nil {
		return Wishlist{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[accessToken]
	if !ok {
		return Wishlist{}, ErrNotFound
	}
	return s.wishlists[id], nil
}

// ListWishlists returns the owner's wishlists, newest first.
func (s *InMemoryStore) ListWishlists(ctx context.Context, ownerID string) ([]WishlistSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]WishlistSummary, 0, 8)
	for _, wl := range s.wishlists {
		if wl.OwnerID != ownerID {
			continue
		}
		out = append(out, WishlistSummary{Wishlist: wl, ItemCount: len(s.itemOrder[wl.ID])})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateWishlist applies fn to a copy of the wishlist and stores the result.
// The id, owner and access token are immutable.
func (s *InMemoryStore) UpdateWishlist(ctx context.Context, id string, fn func(wl *Wishlist) error) (Wishlist, error) {
	if err := ctx.Err(); err != nil {
		return Wishlist{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wl, ok := s.wishlists[id]
	if !ok {
		return Wishlist{}, ErrNotFound
	}
	next := wl
	if err := fn(&next); err != nil {
		return Wishlist{}, err
	}
	next.ID, next.OwnerID, next.AccessToken, next.CreatedAt = wl.ID, wl.OwnerID, wl.AccessToken, wl.CreatedAt
	s.wishlists[id] = next
	return next, nil
}

// CreateItem inserts an item into an existing wishlist.
func (s *InMemoryStore) CreateItem(ctx context.Context, it Item) error {
	if it.ID == "" || it.WishlistID == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wishlists[it.WishlistID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.items[it.ID]; ok {
		return fmt.Errorf("item %s: %w", it.ID, ErrConflict)
	}
	s.items[it.ID] = ItemRecord{Item: it}.clone()
	s.itemOrder[it.WishlistID] = append(s.itemOrder[it.WishlistID], it.ID)
	return nil
}

// LoadItem returns a copy of the item record.
func (s *InMemoryStore) LoadItem(ctx context.Context, itemID string) (ItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return ItemRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[itemID]
	if !ok {
		return ItemRecord{}, ErrNotFound
	}
	return rec.clone(), nil
}

// LoadWishlistItems returns copies of every item record of a wishlist, in creation order.
func (s *InMemoryStore) LoadWishlistItems(ctx context.Context, wishlistID string) ([]ItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.itemOrder[wishlistID]
	out := make([]ItemRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id].clone())
	}
	return out, nil
}

// MutateItem runs fn under the item's lock and applies the returned change.
func (s *InMemoryStore) MutateItem(ctx context.Context, itemID string, fn MutateFunc) (ItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return ItemRecord{}, err
	}

	unlock := s.locks.Lock(itemID)
	defer unlock()

	rec, err := s.LoadItem(ctx, itemID)
	if err != nil {
		return ItemRecord{}, err
	}

	change, err := fn(rec.clone())
	if err != nil {
		return ItemRecord{}, err
	}
	if change.Empty() {
		return rec, nil
	}

	change.apply(&rec)

	s.mu.Lock()
	s.items[itemID] = rec.clone()
	s.mu.Unlock()

	return rec, nil
}

// keyedMutex hands out one mutex per key, dropping it once no goroutine holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m := k.locks[key]
	if m == nil {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
