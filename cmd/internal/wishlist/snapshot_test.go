package wishlist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestProgress(t *testing.T) {
	cases := []struct {
		name  string
		total int64
		price *int64
		want  int
	}{
		{"unpriced", 500, nil, 0},
		{"zero price", 500, ptr(int64(0)), 0},
		{"nothing yet", 0, ptr(int64(5000)), 0},
		{"eighty percent", 4000, ptr(int64(5000)), 80},
		{"rounds half up", 1, ptr(int64(200)), 1},
		{"rounds down below half", 1, ptr(int64(300)), 0},
		{"rounds up above half", 2, ptr(int64(300)), 1},
		{"just below full rounds to 100", 9995, ptr(int64(10000)), 100},
		{"exactly funded", 5000, ptr(int64(5000)), 100},
		{"overfunded caps", 9000, ptr(int64(5000)), 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Progress(tc.total, tc.price))
		})
	}
}

func sampleRecord() ItemRecord {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cancelled := at.Add(time.Minute)
	return ItemRecord{
		Item: Item{
			ID:         "item-1",
			WishlistID: "wl-1",
			Title:      "Headphones",
			PriceCents: ptr(int64(5000)),
			Currency:   "USD",
			Status:     StatusActive,
			CreatedAt:  at,
		},
		Reservations: []Reservation{
			{ID: "r-1", ItemID: "item-1", DisplayName: "Old Bob", CreatedAt: at, CancelledAt: &cancelled},
			{ID: "r-2", ItemID: "item-1", DisplayName: "Carol", CreatedAt: at.Add(2 * time.Minute)},
		},
		Contributions: []Contribution{
			{ID: "c-1", ItemID: "item-1", DisplayName: "Dan", AmountCents: 2000, CreatedAt: at},
			{ID: "c-2", ItemID: "item-1", DisplayName: "Erin", AmountCents: 2000, CreatedAt: at.Add(time.Second)},
		},
	}
}

func TestOwnerView_HidesIdentities(t *testing.T) {
	v := OwnerView(sampleRecord())

	assert.Equal(t, int64(4000), v.TotalContributed)
	assert.True(t, v.Reserved)
	assert.False(t, v.FullyFunded)
	assert.Equal(t, 80, v.Progress)
	assert.Equal(t, 1, v.ReservationCount)
	assert.Equal(t, 2, v.ContributionCount)
	assert.Equal(t, "Headphones", v.Title)

	wl := OwnerWishlist(Wishlist{ID: "wl-1", OwnerID: "owner-alice", Title: "Birthday"}, []ItemRecord{sampleRecord()}, FilterActive)
	for _, out := range []any{v, wl} {
		raw, err := json.Marshal(out)
		require.NoError(t, err)
		for _, name := range []string{"Old Bob", "Carol", "Dan", "Erin"} {
			assert.NotContains(t, string(raw), name)
		}
		assert.NotContains(t, string(raw), `"amount_cents"`)
		assert.NotContains(t, string(raw), "display_name")
		assert.NotContains(t, string(raw), `"reservations"`)
	}
}

func TestGuestView_ListsActiveReservationAndContributions(t *testing.T) {
	v := GuestView(sampleRecord())

	require.Len(t, v.Reservations, 1)
	assert.Equal(t, "Carol", v.Reservations[0].DisplayName)
	require.Len(t, v.Contributions, 2)
	assert.Equal(t, "Dan", v.Contributions[0].DisplayName)
	assert.Equal(t, "Erin", v.Contributions[1].DisplayName)
	assert.Equal(t, 80, v.Progress)
}

func TestGuestView_EmptyCollectionsAreNonNil(t *testing.T) {
	v := GuestView(ItemRecord{Item: Item{ID: "x", Status: StatusActive}})
	assert.NotNil(t, v.Reservations)
	assert.NotNil(t, v.Contributions)
	assert.False(t, v.Reserved)
	assert.False(t, v.FullyFunded)
}

func TestViews_DoNotAliasRecord(t *testing.T) {
	rec := sampleRecord()
	v := GuestView(rec)
	*v.PriceCents = 1
	assert.Equal(t, int64(5000), *rec.Item.PriceCents)
}

func TestWishlistViews_FilterItems(t *testing.T) {
	wl := Wishlist{ID: "wl-1", OwnerID: "alice", Title: "Birthday", AccessToken: "tok", IsPublic: true}
	active := sampleRecord()
	archived := sampleRecord()
	archived.Item.ID = "item-2"
	archived.Item.Status = StatusArchived
	recs := []ItemRecord{active, archived}

	assert.Len(t, OwnerWishlist(wl, recs, FilterActive).Items, 1)
	assert.Len(t, OwnerWishlist(wl, recs, FilterAll).Items, 2)
	arch := OwnerWishlist(wl, recs, FilterArchived).Items
	require.Len(t, arch, 1)
	assert.Equal(t, "item-2", arch[0].ID)

	g := GuestWishlist(wl, recs)
	require.Len(t, g.Items, 1)
	assert.Equal(t, "item-1", g.Items[0].ID)
}

func TestParseItemFilter(t *testing.T) {
	for in, want := range map[string]ItemFilter{
		"":         FilterActive,
		"active":   FilterActive,
		"ARCHIVED": FilterArchived,
		" all ":    FilterAll,
	} {
		got, ok := ParseItemFilter(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseItemFilter("deleted")
	assert.False(t, ok)
}
