package wishlist

import (
	"context"
	"errors"
	"log/slog"

	"wishsync/cmd/identity/ids"
	"wishsync/cmd/security/token"
)

// WishlistInput describes wishlist creation.
type WishlistInput struct {
	Title       string
	Description string
	IsPublic    *bool
}

// WishlistPatch is a partial wishlist update; nil fields are left unchanged.
type WishlistPatch struct {
	Title       *string
	Description *string
	IsPublic    *bool
}

// ItemInput describes item creation.
type ItemInput struct {
	Title      string
	URL        *string
	PriceCents *int64
	Currency   string
	ImageURL   *string
}

// ItemPatch is a partial item update. nil fields are left unchanged; an empty
// URL or ImageURL clears it, ClearPrice removes the price.
type ItemPatch struct {
	Title      *string
	URL        *string
	PriceCents *int64
	ClearPrice bool
	Currency   *string
	ImageURL   *string
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Title == nil && p.URL == nil && p.PriceCents == nil && !p.ClearPrice && p.Currency == nil && p.ImageURL == nil
}

// PublicWishlist is the result of a public read: the guest view, or the owner
// view when the viewer is the wishlist owner.
type PublicWishlist struct {
	Owner *OwnerWishlistView
	Guest *GuestWishlistView
}

// View returns whichever view is set.
func (p PublicWishlist) View() any {
	if p.Owner != nil {
		return p.Owner
	}
	return p.Guest
}

// Service coordinates every mutation of wishlist state. All item writes go
// through Store.MutateItem, so operations on one item are linearized while
// different items proceed in parallel.
type Service struct {
	store         Store
	notifier      Notifier
	observer      Observer
	now           Clock
	log           *slog.Logger
	strictFunding bool
}

// Option configures the Service.
type Option func(*Service) error

// WithNotifier sets where change signals go.
func WithNotifier(n Notifier) Option {
	return func(s *Service) error {
		if n == nil {
			return ErrInvalidInput
		}
		s.notifier = n
		return nil
	}
}

// WithObserver sets the mutation outcome observer.
func WithObserver(o Observer) Option {
	return func(s *Service) error {
		if o == nil {
			return ErrInvalidInput
		}
		s.observer = o
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) error {
		if c == nil {
			return ErrInvalidInput
		}
		s.now = c
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		if l == nil {
			return ErrInvalidInput
		}
		s.log = l
		return nil
	}
}

// WithStrictFunding rejects contributions to fully funded items and amounts
// above the remaining balance.
func WithStrictFunding(on bool) Option {
	return func(s *Service) error {
		s.strictFunding = on
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		store:    store,
		notifier: NopNotifier{},
		observer: nopObserver{},
		now:      systemClock,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ---- Wishlists (owner) ----

// CreateWishlist creates a wishlist with a fresh access token.
func (s *Service) CreateWishlist(ctx context.Context, ownerID string, in WishlistInput) (OwnerWishlistView, error) {
	const op = "create_wishlist"
	if ownerID == "" {
		return OwnerWishlistView{}, opErr(op, ErrUnauthorized, "")
	}
	title, ok := NormalizeWishlistTitle(in.Title)
	if !ok {
		return OwnerWishlistView{}, opErr(op, ErrInvalidInput, "title must be 1-255 characters")
	}
	desc, ok := NormalizeDescription(in.Description)
	if !ok {
		return OwnerWishlistView{}, opErr(op, ErrInvalidInput, "description too long")
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return OwnerWishlistView{}, err
	}
	accessToken, err := token.NewAccessToken()
	if err != nil {
		return OwnerWishlistView{}, err
	}

	wl := Wishlist{
		ID:          id,
		OwnerID:     ownerID,
		Title:       title,
		Description: desc,
		AccessToken: accessToken,
		IsPublic:    true,
		CreatedAt:   now,
	}
	if in.IsPublic != nil {
		wl.IsPublic = *in.IsPublic
	}

	if err := s.store.CreateWishlist(ctx, wl); err != nil {
		return OwnerWishlistView{}, err
	}
	s.log.Info("wishlist.create.ok", "wishlist_id", wl.ID, "owner_id", ownerID)
	return OwnerWishlist(wl, nil, FilterActive), nil
}

// ListWishlists returns the owner's wishlists, newest first.
func (s *Service) ListWishlists(ctx context.Context, ownerID string) ([]WishlistSummary, error) {
	if ownerID == "" {
		return nil, opErr("list_wishlists", ErrUnauthorized, "")
	}
	return s.store.ListWishlists(ctx, ownerID)
}

// GetOwnerWishlist returns the owner's view of a wishlist.
func (s *Service) GetOwnerWishlist(ctx context.Context, ownerID, wishlistID string, filter ItemFilter) (OwnerWishlistView, error) {
	wl, err := s.ownedWishlist(ctx, "get_wishlist", ownerID, wishlistID)
	if err != nil {
		return OwnerWishlistView{}, err
	}
	recs, err := s.store.LoadWishlistItems(ctx, wl.ID)
	if err != nil {
		return OwnerWishlistView{}, err
	}
	return OwnerWishlist(wl, recs, filter), nil
}

// UpdateWishlist edits wishlist metadata. The access token never changes.
func (s *Service) UpdateWishlist(ctx context.Context, ownerID, wishlistID string, p WishlistPatch) (OwnerWishlistView, error) {
	const op = "update_wishlist"
	wl, err := s.ownedWishlist(ctx, op, ownerID, wishlistID)
	if err != nil {
		return OwnerWishlistView{}, err
	}

	var title, desc string
	if p.Title != nil {
		var ok bool
		if title, ok = NormalizeWishlistTitle(*p.Title); !ok {
			return OwnerWishlistView{}, opErr(op, ErrInvalidInput, "title must be 1-255 characters")
		}
	}
	if p.Description != nil {
		var ok bool
		if desc, ok = NormalizeDescription(*p.Description); !ok {
			return OwnerWishlistView{}, opErr(op, ErrInvalidInput, "description too long")
		}
	}

	wl, err = s.store.UpdateWishlist(ctx, wl.ID, func(w *Wishlist) error {
		if p.Title != nil {
			w.Title = title
		}
		if p.Description != nil {
			w.Description = desc
		}
		if p.IsPublic != nil {
			w.IsPublic = *p.IsPublic
		}
		return nil
	})
	if err != nil {
		return OwnerWishlistView{}, err
	}

	s.notify(ctx, Signal{Kind: EventWishlistUpdated, WishlistID: wl.ID})
	recs, err := s.store.LoadWishlistItems(ctx, wl.ID)
	if err != nil {
		return OwnerWishlistView{}, err
	}
	return OwnerWishlist(wl, recs, FilterActive), nil
}

// WishlistExists reports whether a wishlist with id exists.
func (s *Service) WishlistExists(ctx context.Context, id string) (bool, error) {
	if !ids.Valid(id) {
		return false, nil
	}
	_, err := s.store.GetWishlist(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---- Items (owner) ----

// CreateItem adds an active item to an owned wishlist.
func (s *Service) CreateItem(ctx context.Context, ownerID, wishlistID string, in ItemInput) (view OwnerItemView, err error) {
	const op = "create_item"
	defer func() { s.observer.MutationDone(op, err) }()

	wl, err := s.ownedWishlist(ctx, op, ownerID, wishlistID)
	if err != nil {
		return OwnerItemView{}, err
	}

	title, ok := NormalizeItemTitle(in.Title)
	if !ok {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "title must be 1-500 characters")
	}
	currency, ok := NormalizeCurrency(in.Currency)
	if !ok {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "currency must be 1-3 letters")
	}
	if !ValidPrice(in.PriceCents) {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "price out of range")
	}
	url, ok := NormalizeURL(in.URL)
	if !ok {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "url too long")
	}
	image, ok := NormalizeURL(in.ImageURL)
	if !ok {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "image url too long")
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return OwnerItemView{}, err
	}
	it := Item{
		ID:         id,
		WishlistID: wl.ID,
		Title:      title,
		URL:        url,
		PriceCents: clonePtr(in.PriceCents),
		Currency:   currency,
		ImageURL:   image,
		Status:     StatusActive,
		CreatedAt:  now,
	}
	if err := s.store.CreateItem(ctx, it); err != nil {
		return OwnerItemView{}, err
	}

	s.log.Info("mutation.create_item.ok", "wishlist_id", wl.ID, "item_id", it.ID)
	s.notify(ctx, Signal{Kind: EventItemCreated, WishlistID: wl.ID, ItemID: it.ID})
	return OwnerView(ItemRecord{Item: it}), nil
}

// EditItem applies a partial update. Lowering the price below the current
// total makes the item fully funded at once.
func (s *Service) EditItem(ctx context.Context, ownerID, wishlistID, itemID string, p ItemPatch) (view OwnerItemView, err error) {
	const op = "edit_item"
	defer func() { s.observer.MutationDone(op, err) }()

	wl, err := s.ownedWishlist(ctx, op, ownerID, wishlistID)
	if err != nil {
		return OwnerItemView{}, err
	}

	var title, currency string
	var url, image *string
	var ok bool
	if p.Title != nil {
		if title, ok = NormalizeItemTitle(*p.Title); !ok {
			return OwnerItemView{}, opErr(op, ErrInvalidInput, "title must be 1-500 characters")
		}
	}
	if p.Currency != nil {
		if currency, ok = NormalizeCurrency(*p.Currency); !ok {
			return OwnerItemView{}, opErr(op, ErrInvalidInput, "currency must be 1-3 letters")
		}
	}
	if !ValidPrice(p.PriceCents) {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "price out of range")
	}
	if url, ok = NormalizeURL(p.URL); !ok {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "url too long")
	}
	if image, ok = NormalizeURL(p.ImageURL); !ok {
		return OwnerItemView{}, opErr(op, ErrInvalidInput, "image url too long")
	}

	rec, err := s.store.MutateItem(ctx, itemID, func(rec ItemRecord) (ItemChange, error) {
		if rec.Item.WishlistID != wl.ID {
			return ItemChange{}, opErr(op, ErrNotFound, "item")
		}
		if p.Empty() {
			return ItemChange{}, nil
		}
		next := rec.Item
		if p.Title != nil {
			next.Title = title
		}
		if p.URL != nil {
			next.URL = url
		}
		if p.ImageURL != nil {
			next.ImageURL = image
		}
		if p.Currency != nil {
			next.Currency = currency
		}
		switch {
		case p.ClearPrice:
			next.PriceCents = nil
		case p.PriceCents != nil:
			next.PriceCents = clonePtr(p.PriceCents)
		}
		return ItemChange{UpdateItem: &next}, nil
	})
	if err != nil {
		return OwnerItemView{}, s.notFound(op, err)
	}

	if !p.Empty() {
		s.log.Info("mutation.edit_item.ok", "wishlist_id", wl.ID, "item_id", itemID)
		s.notify(ctx, Signal{Kind: EventItemUpdated, WishlistID: wl.ID, ItemID: itemID})
	}
	return OwnerView(rec), nil
}

// ArchiveItem hides an item from guests. Archiving an archived item is a no-op.
func (s *Service) ArchiveItem(ctx context.Context, ownerID, wishlistID, itemID string) (OwnerItemView, error) {
	return s.setStatus(ctx, "archive", ownerID, wishlistID, itemID, StatusArchived)
}

// UnarchiveItem makes an archived item active again.
func (s *Service) UnarchiveItem(ctx context.Context, ownerID, wishlistID, itemID string) (OwnerItemView, error) {
	return s.setStatus(ctx, "unarchive", ownerID, wishlistID, itemID, StatusActive)
}

func (s *Service) setStatus(ctx context.Context, op, ownerID, wishlistID, itemID string, to ItemStatus) (view OwnerItemView, err error) {
	defer func() { s.observer.MutationDone(op, err) }()

	wl, err := s.ownedWishlist(ctx, op, ownerID, wishlistID)
	if err != nil {
		return OwnerItemView{}, err
	}

	changed := false
	rec, err := s.store.MutateItem(ctx, itemID, func(rec ItemRecord) (ItemChange, error) {
		if rec.Item.WishlistID != wl.ID {
			return ItemChange{}, opErr(op, ErrNotFound, "item")
		}
		if rec.Item.Status == to {
			if to == StatusActive {
				return ItemChange{}, opErr(op, ErrInvalidState, "item is not archived")
			}
			return ItemChange{}, nil
		}
		next := rec.Item
		next.Status = to
		changed = true
		return ItemChange{UpdateItem: &next}, nil
	})
	if err != nil {
		return OwnerItemView{}, s.notFound(op, err)
	}

	if changed {
		kind := EventItemArchived
		if to == StatusActive {
			kind = EventItemUnarchived
		}
		s.log.Info("mutation."+op+".ok", "wishlist_id", wl.ID, "item_id", itemID)
		s.notify(ctx, Signal{Kind: kind, WishlistID: wl.ID, ItemID: itemID})
	}
	return OwnerView(rec), nil
}

// ---- Public surface (access token) ----

// GetPublicWishlist resolves an access token to the guest view, or to the
// owner view when viewerID is the owner. Unknown, malformed and non-public
// tokens are all ErrNotFound.
func (s *Service) GetPublicWishlist(ctx context.Context, accessToken, viewerID string) (PublicWishlist, error) {
	wl, err := s.publicWishlist(ctx, "get_public", accessToken)
	if err != nil {
		return PublicWishlist{}, err
	}
	recs, err := s.store.LoadWishlistItems(ctx, wl.ID)
	if err != nil {
		return PublicWishlist{}, err
	}
	if viewerID != "" && viewerID == wl.OwnerID {
		v := OwnerWishlist(wl, recs, FilterActive)
		return PublicWishlist{Owner: &v}, nil
	}
	v := GuestWishlist(wl, recs)
	return PublicWishlist{Guest: &v}, nil
}

// Reserve claims an active, unreserved, not fully funded item.
func (s *Service) Reserve(ctx context.Context, accessToken, itemID, displayName, viewerID string) (view GuestItemView, err error) {
	const op = "reserve"
	defer func() { s.observer.MutationDone(op, err) }()

	wl, err := s.guestWishlist(ctx, op, accessToken, viewerID)
	if err != nil {
		return GuestItemView{}, err
	}
	name, ok := NormalizeDisplayName(displayName)
	if !ok {
		return GuestItemView{}, opErr(op, ErrInvalidInput, "display name must be 1-100 characters")
	}

	rec, err := s.store.MutateItem(ctx, itemID, func(rec ItemRecord) (ItemChange, error) {
		if rec.Item.WishlistID != wl.ID {
			return ItemChange{}, opErr(op, ErrNotFound, "item")
		}
		if rec.Item.Status != StatusActive {
			return ItemChange{}, opErr(op, ErrInvalidState, "item is archived")
		}
		if _, reserved := rec.ActiveReservation(); reserved {
			return ItemChange{}, opErr(op, ErrConflict, "item already reserved")
		}
		if rec.FullyFunded() {
			return ItemChange{}, opErr(op, ErrInvalidState, "item is fully funded")
		}

		now := s.now()
		id, err := ids.NewULID(now)
		if err != nil {
			return ItemChange{}, err
		}
		return ItemChange{AddReservation: &Reservation{
			ID:          id,
			ItemID:      rec.Item.ID,
			DisplayName: name,
			CreatedAt:   now,
		}}, nil
	})
	if err != nil {
		s.logRejected(op, wl.ID, itemID, err)
		return GuestItemView{}, s.notFound(op, err)
	}

	s.log.Info("mutation.reserve.ok", "wishlist_id", wl.ID, "item_id", itemID)
	s.notify(ctx, Signal{Kind: EventItemReserved, WishlistID: wl.ID, ItemID: itemID})
	return GuestView(rec), nil
}

// Unreserve cancels the active reservation, if any. With nothing to cancel it
// succeeds without effect and without a signal.
func (s *Service) Unreserve(ctx context.Context, accessToken, itemID, viewerID string) (view GuestItemView, err error) {
	const op = "unreserve"
	defer func() { s.observer.MutationDone(op, err) }()

	wl, err := s.guestWishlist(ctx, op, accessToken, viewerID)
	if err != nil {
		return GuestItemView{}, err
	}

	cancelled := false
	rec, err := s.store.MutateItem(ctx, itemID, func(rec ItemRecord) (ItemChange, error) {
		if rec.Item.WishlistID != wl.ID {
			return ItemChange{}, opErr(op, ErrNotFound, "item")
		}
		if _, reserved := rec.ActiveReservation(); !reserved {
			return ItemChange{}, nil
		}
		now := s.now()
		cancelled = true
		return ItemChange{CancelReservations: &now}, nil
	})
	if err != nil {
		s.logRejected(op, wl.ID, itemID, err)
		return GuestItemView{}, s.notFound(op, err)
	}

	if cancelled {
		s.log.Info("mutation.unreserve.ok", "wishlist_id", wl.ID, "item_id", itemID)
		s.notify(ctx, Signal{Kind: EventItemUnreserved, WishlistID: wl.ID, ItemID: itemID})
	}
	return GuestView(rec), nil
}

// Contribute records a pledge toward an active, priced item.
func (s *Service) Contribute(ctx context.Context, accessToken, itemID, displayName string, amountCents int64, viewerID string) (view GuestItemView, err error) {
	const op = "contribute"
	defer func() { s.observer.MutationDone(op, err) }()

	if !ValidAmount(amountCents) {
		return GuestItemView{}, opErr(op, ErrInvalidAmount, "amount out of range")
	}
	wl, err := s.guestWishlist(ctx, op, accessToken, viewerID)
	if err != nil {
		return GuestItemView{}, err
	}
	name, ok := NormalizeDisplayName(displayName)
	if !ok {
		return GuestItemView{}, opErr(op, ErrInvalidInput, "display name must be 1-100 characters")
	}

	rec, err := s.store.MutateItem(ctx, itemID, func(rec ItemRecord) (ItemChange, error) {
		if rec.Item.WishlistID != wl.ID {
			return ItemChange{}, opErr(op, ErrNotFound, "item")
		}
		if rec.Item.Status != StatusActive {
			return ItemChange{}, opErr(op, ErrInvalidState, "item is archived")
		}
		if !rec.Item.Priced() {
			return ItemChange{}, opErr(op, ErrInvalidState, "item has no price")
		}
		if s.strictFunding {
			if rec.FullyFunded() {
				return ItemChange{}, opErr(op, ErrInvalidState, "item is fully funded")
			}
			if remaining := *rec.Item.PriceCents - rec.TotalContributed(); amountCents > remaining {
				return ItemChange{}, opErr(op, ErrInvalidAmount, "amount exceeds remaining balance")
			}
		}

		now := s.now()
		id, err := ids.NewULID(now)
		if err != nil {
			return ItemChange{}, err
		}
		return ItemChange{AddContribution: &Contribution{
			ID:          id,
			ItemID:      rec.Item.ID,
			DisplayName: name,
			AmountCents: amountCents,
			CreatedAt:   now,
		}}, nil
	})
	if err != nil {
		s.logRejected(op, wl.ID, itemID, err)
		return GuestItemView{}, s.notFound(op, err)
	}

	s.log.Info("mutation.contribute.ok", "wishlist_id", wl.ID, "item_id", itemID, "amount_cents", amountCents)
	s.notify(ctx, Signal{Kind: EventContributionAdded, WishlistID: wl.ID, ItemID: itemID})
	return GuestView(rec), nil
}

// ---- helpers ----

func (s *Service) ownedWishlist(ctx context.Context, op, ownerID, wishlistID string) (Wishlist, error) {
	if ownerID == "" {
		return Wishlist{}, opErr(op, ErrUnauthorized, "")
	}
	wl, err := s.store.GetWishlist(ctx, wishlistID)
	if err != nil {
		return Wishlist{}, s.notFound(op, err)
	}
	if wl.OwnerID != ownerID {
		return Wishlist{}, opErr(op, ErrUnauthorized, "not the wishlist owner")
	}
	return wl, nil
}

func (s *Service) publicWishlist(ctx context.Context, op, accessToken string) (Wishlist, error) {
	norm, err := token.Normalize(accessToken)
	if err != nil {
		return Wishlist{}, opErr(op, ErrNotFound, "wishlist")
	}
	wl, err := s.store.GetWishlistByToken(ctx, norm)
	if err != nil {
		return Wishlist{}, s.notFound(op, err)
	}
	if !wl.IsPublic || !token.Equal(wl.AccessToken, norm) {
		return Wishlist{}, opErr(op, ErrNotFound, "wishlist")
	}
	return wl, nil
}

// guestWishlist resolves the token for a guest mutation; owners may not
// reserve or contribute to their own items.
func (s *Service) guestWishlist(ctx context.Context, op, accessToken, viewerID string) (Wishlist, error) {
	wl, err := s.publicWishlist(ctx, op, accessToken)
	if err != nil {
		return Wishlist{}, err
	}
	if viewerID != "" && viewerID == wl.OwnerID {
		return Wishlist{}, opErr(op, ErrForbidden, "owners cannot act on their own items")
	}
	return wl, nil
}

// notFound converts a bare store ErrNotFound into an OpError; other errors pass through.
func (s *Service) notFound(op string, err error) error {
	var oe OpError
	if errors.As(err, &oe) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return opErr(op, ErrNotFound, "")
	}
	return err
}

func (s *Service) notify(ctx context.Context, sig Signal) {
	// The mutation is already committed; a cancelled request must not drop the signal.
	s.notifier.Notify(context.WithoutCancel(ctx), sig)
}

func (s *Service) logRejected(op, wishlistID, itemID string, err error) {
	if KindOf(err) != nil {
		s.log.Debug("mutation."+op+".rejected", "wishlist_id", wishlistID, "item_id", itemID, "err", err)
		return
	}
	s.log.Error("mutation."+op+".fail", "wishlist_id", wishlistID, "item_id", itemID, "err", err)
}
