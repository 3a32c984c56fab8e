package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wishsync/cmd/internal/owner"
	"wishsync/cmd/internal/wishlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv      *httptest.Server
	verifier *owner.JWTVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := wishlist.NewService(wishlist.NewInMemoryStore(), wishlist.WithLogger(log))
	require.NoError(t, err)

	v, err := owner.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	h, err := NewHandler(log, svc, v, Config{MaxBodyBytes: 4 << 10})
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, verifier: v}
}

func (e *testEnv) bearer(t *testing.T, ownerID string) string {
	t.Helper()
	tok, err := e.verifier.Issue(ownerID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, bearer, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var er errorResponse
	require.NoError(t, json.Unmarshal(raw, &er), string(raw))
	return er.Error.Code
}

// seed creates a wishlist with one item priced at priceCents and returns
// (wishlist id, access token, item id).
func (e *testEnv) seed(t *testing.T, ownerBearer string, priceCents int64) (string, string, string) {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/api/wishlists", ownerBearer, `{"title":"Birthday"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var wl ownerWishlistResponse
	require.NoError(t, json.Unmarshal(raw, &wl))

	body := `{"title":"Headphones","price_cents":` + jsonInt(priceCents) + `}`
	resp, raw = e.do(t, http.MethodPost, "/api/wishlists/"+wl.Wishlist.ID+"/items", ownerBearer, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var it ownerItemResponse
	require.NoError(t, json.Unmarshal(raw, &it))
	return wl.Wishlist.ID, wl.Wishlist.AccessToken, it.Item.ID
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestPublicFlow_ReserveContributeAndViews(t *testing.T) {
	e := newTestEnv(t)
	alice := e.bearer(t, "owner-alice")
	wlID, tok, itemID := e.seed(t, alice, 5000)

	base := "/api/wishlists/public/" + tok + "/items/" + itemID

	resp, raw := e.do(t, http.MethodPost, base+"/contribute", "", `{"display_name":"Bob","amount_cents":2000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	resp, raw = e.do(t, http.MethodPost, base+"/contribute", "", `{"display_name":"Carol","amount_cents":2000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var item guestItemResponse
	require.NoError(t, json.Unmarshal(raw, &item))
	assert.Equal(t, int64(4000), item.Item.TotalContributed)
	assert.Equal(t, 80, item.Item.Progress)
	assert.False(t, item.Item.FullyFunded)
	require.Len(t, item.Item.Contributions, 2)

	// Guest view carries names.
	resp, raw = e.do(t, http.MethodGet, "/api/wishlists/public/"+tok, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"role":"guest"`)
	assert.Contains(t, string(raw), "Carol")

	// Owner view never does.
	resp, raw = e.do(t, http.MethodGet, "/api/wishlists/"+wlID, alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(raw), "Carol")
	assert.NotContains(t, string(raw), "Bob")
	assert.Contains(t, string(raw), `"progress":80`)

	// The owner reading the public page gets the owner view.
	resp, raw = e.do(t, http.MethodGet, "/api/wishlists/public/"+tok, alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"role":"owner"`)
	assert.NotContains(t, string(raw), "Carol")

	resp, raw = e.do(t, http.MethodPost, base+"/contribute", "", `{"display_name":"Dan","amount_cents":1000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &item))
	assert.True(t, item.Item.FullyFunded)
	assert.Equal(t, 100, item.Item.Progress)

	resp, raw = e.do(t, http.MethodPost, base+"/reserve", "", `{"display_name":"Eve"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_state", errorCode(t, raw))
}

func TestReserve_SecondReserverConflicts(t *testing.T) {
	e := newTestEnv(t)
	_, tok, itemID := e.seed(t, e.bearer(t, "owner-alice"), 5000)
	base := "/api/wishlists/public/" + tok + "/items/" + itemID

	resp, raw := e.do(t, http.MethodPost, base+"/reserve", "", `{"display_name":"Bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = e.do(t, http.MethodPost, base+"/reserve", "", `{"display_name":"Carol"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))

	resp, _ = e.do(t, http.MethodPost, base+"/unreserve", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = e.do(t, http.MethodPost, base+"/reserve", "", `{"display_name":"Carol"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
}

func TestContribute_InvalidAmounts(t *testing.T) {
	e := newTestEnv(t)
	_, tok, itemID := e.seed(t, e.bearer(t, "owner-alice"), 5000)
	path := "/api/wishlists/public/" + tok + "/items/" + itemID + "/contribute"

	for _, body := range []string{
		`{"display_name":"Bob","amount_cents":0}`,
		`{"display_name":"Bob","amount_cents":-5}`,
		`{"display_name":"Bob","amount_cents":"100"}`,
		`{"display_name":"Bob","amount_cents":12.5}`,
		`{"display_name":"Bob","amount_cents":100000001}`,
		`{"display_name":"Bob"}`,
	} {
		resp, raw := e.do(t, http.MethodPost, path, "", body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)
		assert.Equal(t, "invalid_amount", errorCode(t, raw), body)
	}
}

func TestPublic_UnknownOrMalformedTokenIsNotFound(t *testing.T) {
	e := newTestEnv(t)

	for _, tok := range []string{"not-a-token", "0123456789abcdef0123456789abcdef"} {
		resp, raw := e.do(t, http.MethodGet, "/api/wishlists/public/"+tok, "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tok)
		assert.Equal(t, "not_found", errorCode(t, raw))
	}
}

func TestPublic_OwnerCannotReserveOwnItem(t *testing.T) {
	e := newTestEnv(t)
	alice := e.bearer(t, "owner-alice")
	_, tok, itemID := e.seed(t, alice, 5000)

	resp, raw := e.do(t, http.MethodPost, "/api/wishlists/public/"+tok+"/items/"+itemID+"/reserve", alice, `{"display_name":"Alice"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, raw))
}

func TestPublic_InvalidBearerIsRejected(t *testing.T) {
	e := newTestEnv(t)
	_, tok, _ := e.seed(t, e.bearer(t, "owner-alice"), 5000)

	resp, raw := e.do(t, http.MethodGet, "/api/wishlists/public/"+tok, "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", errorCode(t, raw))
}

func TestOwnerRoutes_RequireMatchingOwner(t *testing.T) {
	e := newTestEnv(t)
	wlID, _, itemID := e.seed(t, e.bearer(t, "owner-alice"), 5000)

	resp, raw := e.do(t, http.MethodGet, "/api/wishlists/"+wlID, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(t, raw))

	mallory := e.bearer(t, "owner-mallory")
	resp, _ = e.do(t, http.MethodPost, "/api/wishlists/"+wlID+"/items/"+itemID+"/archive", mallory, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestArchive_HidesItemFromGuests(t *testing.T) {
	e := newTestEnv(t)
	alice := e.bearer(t, "owner-alice")
	wlID, tok, itemID := e.seed(t, alice, 5000)
	itemPath := "/api/wishlists/" + wlID + "/items/" + itemID

	resp, raw := e.do(t, http.MethodPost, itemPath+"/archive", alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Contains(t, string(raw), `"status":"archived"`)

	resp, raw = e.do(t, http.MethodGet, "/api/wishlists/public/"+tok, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(raw), itemID)

	resp, raw = e.do(t, http.MethodPost, "/api/wishlists/public/"+tok+"/items/"+itemID+"/reserve", "", `{"display_name":"Bob"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_state", errorCode(t, raw))

	resp, raw = e.do(t, http.MethodGet, "/api/wishlists/"+wlID+"?status=archived", alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), itemID)

	resp, _ = e.do(t, http.MethodGet, "/api/wishlists/"+wlID+"?status=bogus", alice, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, itemPath+"/unarchive", alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, raw = e.do(t, http.MethodPost, itemPath+"/unarchive", alice, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_state", errorCode(t, raw))
}

func TestPatchItem_NullPriceClears(t *testing.T) {
	e := newTestEnv(t)
	alice := e.bearer(t, "owner-alice")
	wlID, _, itemID := e.seed(t, alice, 5000)
	path := "/api/wishlists/" + wlID + "/items/" + itemID

	resp, raw := e.do(t, http.MethodPatch, path, alice, `{"price_cents":7000,"title":"Better headphones"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var it ownerItemResponse
	require.NoError(t, json.Unmarshal(raw, &it))
	require.NotNil(t, it.Item.PriceCents)
	assert.Equal(t, int64(7000), *it.Item.PriceCents)
	assert.Equal(t, "Better headphones", it.Item.Title)

	resp, raw = e.do(t, http.MethodPatch, path, alice, `{"price_cents":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &it))
	assert.Nil(t, it.Item.PriceCents)

	resp, _ = e.do(t, http.MethodPatch, path, alice, `{"price_cents":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListAndPatchWishlist(t *testing.T) {
	e := newTestEnv(t)
	alice := e.bearer(t, "owner-alice")
	wlID, tok, _ := e.seed(t, alice, 5000)

	resp, raw := e.do(t, http.MethodGet, "/api/wishlists", alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list wishlistListResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Wishlists, 1)
	assert.Equal(t, 1, list.Wishlists[0].ItemCount)

	resp, raw = e.do(t, http.MethodPatch, "/api/wishlists/"+wlID, alice, `{"is_public":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = e.do(t, http.MethodGet, "/api/wishlists/public/"+tok, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDecode_RejectsUnknownFieldsAndTrailingData(t *testing.T) {
	e := newTestEnv(t)
	alice := e.bearer(t, "owner-alice")

	resp, raw := e.do(t, http.MethodPost, "/api/wishlists", alice, `{"title":"x","bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_json", errorCode(t, raw))

	resp, _ = e.do(t, http.MethodPost, "/api/wishlists", alice, `{"title":"x"}{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := `{"title":"` + string(bytes.Repeat([]byte("a"), 8<<10)) + `"}`
	resp, raw = e.do(t, http.MethodPost, "/api/wishlists", alice, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "body_too_large", errorCode(t, raw))
}
