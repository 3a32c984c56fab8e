package wishlist

import "time"

// ItemStatus is the lifecycle status of an item.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusArchived ItemStatus = "archived"
)

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// Wishlist is a titled collection of items owned by one user.
type Wishlist struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	AccessToken string
	IsPublic    bool
	CreatedAt   time.Time
}

// WishlistSummary is the owner's listing row.
type WishlistSummary struct {
	Wishlist
	ItemCount int
}

// Item is a single giftable entry.
type Item struct {
	ID         string
	WishlistID string
	Title      string
	URL        *string
	PriceCents *int64
	Currency   string
	ImageURL   *string
	Status     ItemStatus
	CreatedAt  time.Time
}

// Priced reports whether the item has a positive target price.
func (it Item) Priced() bool {
	return it.PriceCents != nil && *it.PriceCents > 0
}

// Reservation is a claim of intent to gift an item.
// Only reservations with CancelledAt == nil are active.
type Reservation struct {
	ID          string
	ItemID      string
	DisplayName string
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Active reports whether the reservation still holds the item.
func (r Reservation) Active() bool { return r.CancelledAt == nil }

// Contribution is an append-only pledge toward an item's price.
type Contribution struct {
	ID          string
	ItemID      string
	DisplayName string
	AmountCents int64
	CreatedAt   time.Time
}

// ItemRecord is an item together with its reservation and contribution history,
// both ordered by creation time.
type ItemRecord struct {
	Item          Item
	Reservations  []Reservation
	Contributions []Contribution
}

// ActiveReservation returns the active reservation, if any.
func (r ItemRecord) ActiveReservation() (Reservation, bool) {
	for _, res := range r.Reservations {
		if res.Active() {
			return res, true
		}
	}
	return Reservation{}, false
}

// TotalContributed sums all contribution amounts.
func (r ItemRecord) TotalContributed() int64 {
	var total int64
	for _, c := range r.Contributions {
		total += c.AmountCents
	}
	return total
}

// FullyFunded holds iff the item is priced and the total reached the price.
func (r ItemRecord) FullyFunded() bool {
	return r.Item.Priced() && r.TotalContributed() >= *r.Item.PriceCents
}

// clone returns a deep copy so callers never share slices with a store.
func (r ItemRecord) clone() ItemRecord {
	out := ItemRecord{Item: r.Item}
	out.Item.URL = clonePtr(r.Item.URL)
	out.Item.PriceCents = clonePtr(r.Item.PriceCents)
	out.Item.ImageURL = clonePtr(r.Item.ImageURL)
	if len(r.Reservations) > 0 {
		out.Reservations = make([]Reservation, len(r.Reservations))
		for i, res := range r.Reservations {
			res.CancelledAt = clonePtr(res.CancelledAt)
			out.Reservations[i] = res
		}
	}
	if len(r.Contributions) > 0 {
		out.Contributions = append([]Contribution(nil), r.Contributions...)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ItemChange describes the writes a mutation wants applied to one item.
// Stores apply every set field atomically, or none of them.
type ItemChange struct {
	// UpdateItem replaces the mutable item fields (title, url, price, currency, image, status).
	UpdateItem *Item
	// AddReservation inserts a new active reservation.
	AddReservation *Reservation
	// CancelReservations marks every active reservation cancelled at this time.
	CancelReservations *time.Time
	// AddContribution appends a contribution.
	AddContribution *Contribution
}

// Empty reports whether the change writes nothing.
func (c ItemChange) Empty() bool {
	return c.UpdateItem == nil && c.AddReservation == nil && c.CancelReservations == nil && c.AddContribution == nil
}

// apply folds the change into rec. Stores call it after persisting so the
// returned record matches what was written.
func (c ItemChange) apply(rec *ItemRecord) {
	if c.UpdateItem != nil {
		rec.Item.Title = c.UpdateItem.Title
		rec.Item.URL = clonePtr(c.UpdateItem.URL)
		rec.Item.PriceCents = clonePtr(c.UpdateItem.PriceCents)
		rec.Item.Currency = c.UpdateItem.Currency
		rec.Item.ImageURL = clonePtr(c.UpdateItem.ImageURL)
		rec.Item.Status = c.UpdateItem.Status
	}
	if c.CancelReservations != nil {
		for i := range rec.Reservations {
			if rec.Reservations[i].Active() {
				at := *c.CancelReservations
				rec.Reservations[i].CancelledAt = &at
			}
		}
	}
	if c.AddReservation != nil {
		rec.Reservations = append(rec.Reservations, *c.AddReservation)
	}
	if c.AddContribution != nil {
		rec.Contributions = append(rec.Contributions, *c.AddContribution)
	}
}
