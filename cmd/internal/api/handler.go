// Package api exposes the wishlist service over JSON HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"wishsync/cmd/internal/owner"
	"wishsync/cmd/internal/wishlist"
)

// DefaultMaxBodyBytes caps request bodies when Config leaves it unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// Config holds API request limits.
type Config struct {
	MaxBodyBytes int64
}

// Handler serves the owner and public wishlist routes.
type Handler struct {
	log      *slog.Logger
	svc      *wishlist.Service
	verifier owner.Verifier
	cfg      Config
}

// NewHandler wires the handler. verifier may be nil, in which case every
// request is anonymous and owner routes answer 401.
func NewHandler(log *slog.Logger, svc *wishlist.Service, verifier owner.Verifier, cfg Config) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("api: nil service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{log: log, svc: svc, verifier: verifier, cfg: cfg}, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	// Public (access token).
	mux.HandleFunc("GET /api/wishlists/public/{token}", h.handleGetPublic)
	mux.HandleFunc("POST /api/wishlists/public/{token}/items/{item_id}/reserve", h.handleReserve)
	mux.HandleFunc("POST /api/wishlists/public/{token}/items/{item_id}/unreserve", h.handleUnreserve)
	mux.HandleFunc("POST /api/wishlists/public/{token}/items/{item_id}/contribute", h.handleContribute)

	// Owner.
	mux.HandleFunc("POST /api/wishlists", h.handleCreateWishlist)
	mux.HandleFunc("GET /api/wishlists", h.handleListWishlists)
	mux.HandleFunc("GET /api/wishlists/{id}", h.handleGetWishlist)
	mux.HandleFunc("PATCH /api/wishlists/{id}", h.handlePatchWishlist)
	mux.HandleFunc("POST /api/wishlists/{id}/items", h.handleCreateItem)
	mux.HandleFunc("PATCH /api/wishlists/{id}/items/{item_id}", h.handlePatchItem)
	mux.HandleFunc("POST /api/wishlists/{id}/items/{item_id}/archive", h.handleArchive)
	mux.HandleFunc("POST /api/wishlists/{id}/items/{item_id}/unarchive", h.handleUnarchive)
}

// ---- public ----

func (h *Handler) handleGetPublic(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetPublicWishlist(r.Context(), r.PathValue("token"), viewer)
	if err != nil {
		writeServiceError(w, h.log, "get_public", err)
		return
	}
	role := "guest"
	if res.Owner != nil {
		role = "owner"
	}
	writeJSON(w, http.StatusOK, publicWishlistResponse{Role: role, Wishlist: res.View()})
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.svc.Reserve(r.Context(), r.PathValue("token"), r.PathValue("item_id"), req.DisplayName, viewer)
	if err != nil {
		writeServiceError(w, h.log, "reserve", err)
		return
	}
	writeJSON(w, http.StatusOK, guestItemResponse{Item: item})
}

func (h *Handler) handleUnreserve(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	item, err := h.svc.Unreserve(r.Context(), r.PathValue("token"), r.PathValue("item_id"), viewer)
	if err != nil {
		writeServiceError(w, h.log, "unreserve", err)
		return
	}
	writeJSON(w, http.StatusOK, guestItemResponse{Item: item})
}

func (h *Handler) handleContribute(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	var req contributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := wishlist.ParseAmount(req.AmountCents)
	if err != nil {
		writeServiceError(w, h.log, "contribute", err)
		return
	}
	item, err := h.svc.Contribute(r.Context(), r.PathValue("token"), r.PathValue("item_id"), req.DisplayName, amount, viewer)
	if err != nil {
		writeServiceError(w, h.log, "contribute", err)
		return
	}
	writeJSON(w, http.StatusOK, guestItemResponse{Item: item})
}

// ---- owner ----

func (h *Handler) handleCreateWishlist(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req wishlistCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.svc.CreateWishlist(r.Context(), ownerID, wishlist.WishlistInput{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeServiceError(w, h.log, "create_wishlist", err)
		return
	}
	writeJSON(w, http.StatusCreated, ownerWishlistResponse{Wishlist: view})
}

func (h *Handler) handleListWishlists(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListWishlists(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, h.log, "list_wishlists", err)
		return
	}
	writeJSON(w, http.StatusOK, wishlistListResponse{Wishlists: toWishlistSummaries(list)})
}

func (h *Handler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	filter, valid := wishlist.ParseItemFilter(r.URL.Query().Get("status"))
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_input", "status must be active, archived or all")
		return
	}
	view, err := h.svc.GetOwnerWishlist(r.Context(), ownerID, r.PathValue("id"), filter)
	if err != nil {
		writeServiceError(w, h.log, "get_wishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, ownerWishlistResponse{Wishlist: view})
}

func (h *Handler) handlePatchWishlist(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req wishlistPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.svc.UpdateWishlist(r.Context(), ownerID, r.PathValue("id"), wishlist.WishlistPatch{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeServiceError(w, h.log, "update_wishlist", err)
		return
	}
	writeJSON(w, http.StatusOK, ownerWishlistResponse{Wishlist: view})
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req itemCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.svc.CreateItem(r.Context(), ownerID, r.PathValue("id"), wishlist.ItemInput{
		Title:      req.Title,
		URL:        req.URL,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, h.log, "create_item", err)
		return
	}
	writeJSON(w, http.StatusCreated, ownerItemResponse{Item: item})
}

func (h *Handler) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req itemPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := wishlist.ItemPatch{
		Title:    req.Title,
		URL:      req.URL,
		Currency: req.Currency,
		ImageURL: req.ImageURL,
	}
	if len(req.PriceCents) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.PriceCents), []byte("null")) {
			patch.ClearPrice = true
		} else {
			var price int64
			if err := json.Unmarshal(req.PriceCents, &price); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_input", "price_cents must be an integer or null")
				return
			}
			patch.PriceCents = &price
		}
	}

	item, err := h.svc.EditItem(r.Context(), ownerID, r.PathValue("id"), r.PathValue("item_id"), patch)
	if err != nil {
		writeServiceError(w, h.log, "edit_item", err)
		return
	}
	writeJSON(w, http.StatusOK, ownerItemResponse{Item: item})
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	item, err := h.svc.ArchiveItem(r.Context(), ownerID, r.PathValue("id"), r.PathValue("item_id"))
	if err != nil {
		writeServiceError(w, h.log, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, ownerItemResponse{Item: item})
}

func (h *Handler) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	item, err := h.svc.UnarchiveItem(r.Context(), ownerID, r.PathValue("id"), r.PathValue("item_id"))
	if err != nil {
		writeServiceError(w, h.log, "unarchive", err)
		return
	}
	writeJSON(w, http.StatusOK, ownerItemResponse{Item: item})
}

// ---- helpers ----

// owner requires a valid bearer token.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := owner.Authenticate(r, h.verifier)
	if err != nil {
		writeAuthError(w, err)
		return "", false
	}
	return id.OwnerID, true
}

// viewer returns the owner id behind an optional bearer token.
func (h *Handler) viewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := owner.Optional(r, h.verifier)
	if err != nil {
		writeAuthError(w, err)
		return "", false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}
