// Package syncclient is the client side of wishsync: an HTTP API client, a
// persisted owner session and a Watcher that keeps a wishlist view current by
// refetching whenever the realtime gateway signals a change.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wishsync/cmd/internal/wishlist"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx response. It unwraps to the matching wishlist error
// kind so callers can use errors.Is(err, wishlist.ErrConflict).
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wishsync api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return wishlist.ErrNotFound
	case "conflict":
		return wishlist.ErrConflict
	case "invalid_state":
		return wishlist.ErrInvalidState
	case "invalid_amount":
		return wishlist.ErrInvalidAmount
	case "invalid_input", "invalid_json":
		return wishlist.ErrInvalidInput
	case "unauthorized", "invalid_token", "token_expired":
		return wishlist.ErrUnauthorized
	case "forbidden":
		return wishlist.ErrForbidden
	default:
		return nil
	}
}

// PublicWishlist is the public read result. Exactly one view is set.
type PublicWishlist struct {
	Owner *wishlist.OwnerWishlistView
	Guest *wishlist.GuestWishlistView
}

// WishlistID returns the id of whichever view is set.
func (p PublicWishlist) WishlistID() string {
	if p.Owner != nil {
		return p.Owner.ID
	}
	if p.Guest != nil {
		return p.Guest.ID
	}
	return ""
}

// Client talks to the wishsync HTTP API.
type Client struct {
	base    *url.URL
	http    *http.Client
	session *Session
}

// NewClient builds a client for baseURL (e.g. "http://localhost:8080").
// session may be nil for anonymous use; httpClient defaults to a 15s timeout.
func NewClient(baseURL string, session *Session, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("syncclient: base url must be http(s)")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: u, http: httpClient, session: session}, nil
}

// WatchURL returns the realtime endpoint for a wishlist.
func (c *Client) WatchURL(wishlistID string) string {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = c.base.Path + "/ws/wishlists/" + url.PathEscape(wishlistID)
	return u.String()
}

// GetPublic reads a wishlist through its access token.
func (c *Client) GetPublic(ctx context.Context, accessToken string) (PublicWishlist, error) {
	var raw struct {
		Role     string          `json:"role"`
		Wishlist json.RawMessage `json:"wishlist"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/wishlists/public/"+url.PathEscape(accessToken), nil, &raw); err != nil {
		return PublicWishlist{}, err
	}

	var out PublicWishlist
	if raw.Role == "owner" {
		out.Owner = &wishlist.OwnerWishlistView{}
		return out, json.Unmarshal(raw.Wishlist, out.Owner)
	}
	out.Guest = &wishlist.GuestWishlistView{}
	return out, json.Unmarshal(raw.Wishlist, out.Guest)
}

// GetOwner reads the owner's view of a wishlist. filter may be empty.
func (c *Client) GetOwner(ctx context.Context, wishlistID string, filter wishlist.ItemFilter) (wishlist.OwnerWishlistView, error) {
	path := "/api/wishlists/" + url.PathEscape(wishlistID)
	if filter != "" {
		path += "?status=" + url.QueryEscape(string(filter))
	}
	var resp struct {
		Wishlist wishlist.OwnerWishlistView `json:"wishlist"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Wishlist, err
}

// Reserve claims an item.
func (c *Client) Reserve(ctx context.Context, accessToken, itemID, displayName string) (wishlist.GuestItemView, error) {
	return c.guestItem(ctx, accessToken, itemID, "reserve", map[string]any{"display_name": displayName})
}

// Unreserve cancels an item's active reservation.
func (c *Client) Unreserve(ctx context.Context, accessToken, itemID string) (wishlist.GuestItemView, error) {
	return c.guestItem(ctx, accessToken, itemID, "unreserve", nil)
}

// Contribute pledges amountCents toward an item.
func (c *Client) Contribute(ctx context.Context, accessToken, itemID, displayName string, amountCents int64) (wishlist.GuestItemView, error) {
	return c.guestItem(ctx, accessToken, itemID, "contribute", map[string]any{
		"display_name": displayName,
		"amount_cents": amountCents,
	})
}

func (c *Client) guestItem(ctx context.Context, accessToken, itemID, action string, body any) (wishlist.GuestItemView, error) {
	path := "/api/wishlists/public/" + url.PathEscape(accessToken) + "/items/" + url.PathEscape(itemID) + "/" + action
	var resp struct {
		Item wishlist.GuestItemView `json:"item"`
	}
	err := c.do(ctx, http.MethodPost, path, body, &resp)
	return resp.Item, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.session.Bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &er)
		return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
