package wishlist

import (
	"strings"
	"time"
)

// ItemFields are the item attributes every viewer may see.
type ItemFields struct {
	ID         string     `json:"id"`
	WishlistID string     `json:"wishlist_id"`
	Title      string     `json:"title"`
	URL        *string    `json:"url"`
	PriceCents *int64     `json:"price_cents"`
	Currency   string     `json:"currency"`
	ImageURL   *string    `json:"image_url"`
	Status     ItemStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OwnerItemView is what the wishlist owner sees. It never carries reserver or
// contributor names, nor individual contribution amounts.
type OwnerItemView struct {
	ItemFields
	TotalContributed  int64 `json:"total_contributed"`
	Reserved          bool  `json:"reserved"`
	FullyFunded       bool  `json:"fully_funded"`
	Progress          int   `json:"progress"`
	ReservationCount  int   `json:"reservation_count"`
	ContributionCount int   `json:"contribution_count"`
}

// ReservationView is a guest-visible reservation.
type ReservationView struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"reserver_display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContributionView is a guest-visible contribution.
type ContributionView struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"contributor_display_name"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// GuestItemView is what access-token holders see.
type GuestItemView struct {
	ItemFields
	TotalContributed int64              `json:"total_contributed"`
	Reserved         bool               `json:"reserved"`
	FullyFunded      bool               `json:"fully_funded"`
	Progress         int                `json:"progress"`
	Reservations     []ReservationView  `json:"reservations"`
	Contributions    []ContributionView `json:"contributions"`
}

// OwnerWishlistView is the owner's dashboard view of a wishlist.
type OwnerWishlistView struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	AccessToken string          `json:"access_token"`
	IsPublic    bool            `json:"is_public"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []OwnerItemView `json:"items"`
}

// GuestWishlistView is the public page of a wishlist.
type GuestWishlistView struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	IsPublic    bool            `json:"is_public"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []GuestItemView `json:"items"`
}

// ItemFilter selects which items a wishlist view includes.
type ItemFilter string

const (
	FilterActive   ItemFilter = "active"
	FilterArchived ItemFilter = "archived"
	FilterAll      ItemFilter = "all"
)

// ParseItemFilter maps a query value to a filter; empty means active.
func ParseItemFilter(s string) (ItemFilter, bool) {
	switch ItemFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterActive:
		return FilterActive, true
	case FilterArchived:
		return FilterArchived, true
	case FilterAll:
		return FilterAll, true
	default:
		return "", false
	}
}

// Match reports whether an item with status s passes the filter.
func (f ItemFilter) Match(s ItemStatus) bool {
	switch f {
	case FilterAll:
		return true
	case FilterArchived:
		return s == StatusArchived
	default:
		return s == StatusActive
	}
}

// Progress is floor(min(100, round(100*total/price))) for price > 0, else 0.
// Rounding is half-up and done in integers.
func Progress(totalCents int64, priceCents *int64) int {
	if priceCents == nil || *priceCents <= 0 || totalCents <= 0 {
		return 0
	}
	price := *priceCents
	if totalCents >= price {
		return 100
	}
	return int((200*totalCents + price) / (2 * price))
}

func itemFields(it Item) ItemFields {
	return ItemFields{
		ID:         it.ID,
		WishlistID: it.WishlistID,
		Title:      it.Title,
		URL:        clonePtr(it.URL),
		PriceCents: clonePtr(it.PriceCents),
		Currency:   it.Currency,
		ImageURL:   clonePtr(it.ImageURL),
		Status:     it.Status,
		CreatedAt:  it.CreatedAt,
	}
}

// OwnerView assembles the owner's view of rec.
func OwnerView(rec ItemRecord) OwnerItemView {
	total := rec.TotalContributed()
	_, reserved := rec.ActiveReservation()

	active := 0
	for _, r := range rec.Reservations {
		if r.Active() {
			active++
		}
	}

	return OwnerItemView{
		ItemFields:        itemFields(rec.Item),
		TotalContributed:  total,
		Reserved:          reserved,
		FullyFunded:       rec.FullyFunded(),
		Progress:          Progress(total, rec.Item.PriceCents),
		ReservationCount:  active,
		ContributionCount: len(rec.Contributions),
	}
}

// GuestView assembles the access-token holder's view of rec.
func GuestView(rec ItemRecord) GuestItemView {
	total := rec.TotalContributed()
	_, reserved := rec.ActiveReservation()

	reservations := make([]ReservationView, 0, 1)
	for _, r := range rec.Reservations {
		if !r.Active() {
			continue
		}
		reservations = append(reservations, ReservationView{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			CreatedAt:   r.CreatedAt,
		})
	}

	contributions := make([]ContributionView, 0, len(rec.Contributions))
	for _, c := range rec.Contributions {
		contributions = append(contributions, ContributionView{
			ID:          c.ID,
			DisplayName: c.DisplayName,
			AmountCents: c.AmountCents,
			CreatedAt:   c.CreatedAt,
		})
	}

	return GuestItemView{
		ItemFields:       itemFields(rec.Item),
		TotalContributed: total,
		Reserved:         reserved,
		FullyFunded:      rec.FullyFunded(),
		Progress:         Progress(total, rec.Item.PriceCents),
		Reservations:     reservations,
		Contributions:    contributions,
	}
}

// OwnerWishlist assembles the owner's wishlist view from records already in creation order.
func OwnerWishlist(wl Wishlist, recs []ItemRecord, filter ItemFilter) OwnerWishlistView {
	items := make([]OwnerItemView, 0, len(recs))
	for _, rec := range recs {
		if filter.Match(rec.Item.Status) {
			items = append(items, OwnerView(rec))
		}
	}
	return OwnerWishlistView{
		ID:          wl.ID,
		OwnerID:     wl.OwnerID,
		Title:       wl.Title,
		Description: wl.Description,
		AccessToken: wl.AccessToken,
		IsPublic:    wl.IsPublic,
		CreatedAt:   wl.CreatedAt,
		Items:       items,
	}
}

// GuestWishlist assembles the public wishlist view; only active items are listed.
func GuestWishlist(wl Wishlist, recs []ItemRecord) GuestWishlistView {
	items := make([]GuestItemView, 0, len(recs))
	for _, rec := range recs {
		if FilterActive.Match(rec.Item.Status) {
			items = append(items, GuestView(rec))
		}
	}
	return GuestWishlistView{
		ID:          wl.ID,
		OwnerID:     wl.OwnerID,
		Title:       wl.Title,
		Description: wl.Description,
		IsPublic:    wl.IsPublic,
		CreatedAt:   wl.CreatedAt,
		Items:       items,
	}
}
