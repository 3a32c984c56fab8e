package api

import (
	"encoding/json"
	"time"

	"wishsync/cmd/internal/wishlist"
)

type reserveRequest struct {
	DisplayName string `json:"display_name"`
}

type contributeRequest struct {
	DisplayName string          `json:"display_name"`
	AmountCents json.RawMessage `json:"amount_cents"`
}

type wishlistCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    *bool  `json:"is_public"`
}

type wishlistPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

type itemCreateRequest struct {
	Title      string  `json:"title"`
	URL        *string `json:"url"`
	PriceCents *int64  `json:"price_cents"`
	Currency   string  `json:"currency"`
	ImageURL   *string `json:"image_url"`
}

// itemPatchRequest keeps price_cents raw so an explicit null (clear) can be
// told apart from an absent field.
type itemPatchRequest struct {
	Title      *string         `json:"title"`
	URL        *string         `json:"url"`
	PriceCents json.RawMessage `json:"price_cents"`
	Currency   *string         `json:"currency"`
	ImageURL   *string         `json:"image_url"`
}

type publicWishlistResponse struct {
	Role     string `json:"role"`
	Wishlist any    `json:"wishlist"`
}

type ownerWishlistResponse struct {
	Wishlist wishlist.OwnerWishlistView `json:"wishlist"`
}

type guestItemResponse struct {
	Item wishlist.GuestItemView `json:"item"`
}

type ownerItemResponse struct {
	Item wishlist.OwnerItemView `json:"item"`
}

type wishlistSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AccessToken string    `json:"access_token"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	ItemCount   int       `json:"item_count"`
}

type wishlistListResponse struct {
	Wishlists []wishlistSummary `json:"wishlists"`
}

func toWishlistSummaries(in []wishlist.WishlistSummary) []wishlistSummary {
	out := make([]wishlistSummary, 0, len(in))
	for _, ws := range in {
		out = append(out, wishlistSummary{
			ID:          ws.ID,
			Title:       ws.Title,
			Description: ws.Description,
			AccessToken: ws.AccessToken,
			IsPublic:    ws.IsPublic,
			CreatedAt:   ws.CreatedAt,
			ItemCount:   ws.ItemCount,
		})
	}
	return out
}
