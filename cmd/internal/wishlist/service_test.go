package wishlist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	signals []Signal
}

func (n *recordingNotifier) Notify(_ context.Context, sig Signal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signals = append(n.signals, sig)
}

func (n *recordingNotifier) kinds() []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventKind, 0, len(n.signals))
	for _, s := range n.signals {
		out = append(out, s.Kind)
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	n.signals = nil
	n.mu.Unlock()
}

type countingObserver struct {
	mu  sync.Mutex
	ops map[string]int
}

func (o *countingObserver) MutationDone(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops == nil {
		o.ops = map[string]int{}
	}
	key := op + ":ok"
	if err != nil {
		key = op + ":err"
	}
	o.ops[key]++
}

type fixture struct {
	svc      *Service
	notes    *recordingNotifier
	obs      *countingObserver
	ctx      context.Context
	wishlist OwnerWishlistView
	item     OwnerItemView
}

const ownerID = "owner-alice"

func newFixture(t *testing.T, price *int64, opts ...Option) *fixture {
	t.Helper()
	notes := &recordingNotifier{}
	obs := &countingObserver{}
	base := []Option{
		WithNotifier(notes),
		WithObserver(obs),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	svc, err := NewService(NewInMemoryStore(), append(base, opts...)...)
	require.NoError(t, err)

	ctx := context.Background()
	wl, err := svc.CreateWishlist(ctx, ownerID, WishlistInput{Title: "Birthday"})
	require.NoError(t, err)
	it, err := svc.CreateItem(ctx, ownerID, wl.ID, ItemInput{Title: "Headphones", PriceCents: price})
	require.NoError(t, err)
	notes.reset()

	return &fixture{svc: svc, notes: notes, obs: obs, ctx: ctx, wishlist: wl, item: it}
}

func (f *fixture) token() string { return f.wishlist.AccessToken }

func TestService_CreateDefaults(t *testing.T) {
	f := newFixture(t, nil)

	assert.True(t, f.wishlist.IsPublic)
	assert.Len(t, f.wishlist.AccessToken, 32)
	assert.Equal(t, "USD", f.item.Currency)
	assert.Equal(t, StatusActive, f.item.Status)

	_, err := f.svc.CreateWishlist(f.ctx, "", WishlistInput{Title: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.CreateWishlist(f.ctx, ownerID, WishlistInput{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateItem(f.ctx, ownerID, f.wishlist.ID, ItemInput{Title: "x", Currency: "EURO"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateItem(f.ctx, "owner-mallory", f.wishlist.ID, ItemInput{Title: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_ConcurrentReservesOneWins(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	const n = 32
	var ok, conflict, other atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Guest", "")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrConflict):
				conflict.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), conflict.Load())
	assert.Zero(t, other.Load())
	assert.Equal(t, []EventKind{EventItemReserved}, f.notes.kinds())
}

func TestService_ConcurrentContributionsSumExactly(t *testing.T) {
	f := newFixture(t, ptr(int64(1_000_000)))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Guest", 100, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := f.svc.GetOwnerWishlist(f.ctx, ownerID, f.wishlist.ID, FilterActive)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(n*100), view.Items[0].TotalContributed)
	assert.Equal(t, n, view.Items[0].ContributionCount)
	assert.Len(t, f.notes.kinds(), n)
}

func TestService_FundingScenario(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	v, err := f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", 2000, "")
	require.NoError(t, err)
	assert.Equal(t, 40, v.Progress)

	v, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Carol", 2000, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), v.TotalContributed)
	assert.Equal(t, 80, v.Progress)
	assert.False(t, v.FullyFunded)

	v, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Dan", 1000, "")
	require.NoError(t, err)
	assert.Equal(t, 100, v.Progress)
	assert.True(t, v.FullyFunded)

	_, err = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Eve", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	// Lenient funding keeps accepting pledges past the price.
	v, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Eve", 500, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5500), v.TotalContributed)
	assert.Equal(t, 100, v.Progress)
}

func TestService_StrictFunding(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)), WithStrictFunding(true))

	_, err := f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", 6000, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", 5000, "")
	require.NoError(t, err)

	_, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Carol", 1, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestService_ContributeRejections(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", 100, "")
	assert.ErrorIs(t, err, ErrInvalidState, "unpriced item")

	for _, amount := range []int64{0, -1, MaxAmountCents + 1} {
		_, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", amount, "")
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}

	_, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "  ", 100, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.notes.kinds())
}

func TestService_UnreserveIsIdempotent(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	v, err := f.svc.Unreserve(f.ctx, f.token(), f.item.ID, "")
	require.NoError(t, err)
	assert.False(t, v.Reserved)
	assert.Empty(t, f.notes.kinds())

	_, err = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Bob", "")
	require.NoError(t, err)
	v, err = f.svc.Unreserve(f.ctx, f.token(), f.item.ID, "")
	require.NoError(t, err)
	assert.False(t, v.Reserved)
	assert.Empty(t, v.Reservations)

	v, err = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Carol", "")
	require.NoError(t, err)
	require.Len(t, v.Reservations, 1)
	assert.Equal(t, "Carol", v.Reservations[0].DisplayName)

	assert.Equal(t, []EventKind{EventItemReserved, EventItemUnreserved, EventItemReserved}, f.notes.kinds())
}

func TestService_TokenResolution(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	for _, tok := range []string{"", "short", "0123456789abcdef0123456789abcdef"} {
		_, err := f.svc.GetPublicWishlist(f.ctx, tok, "")
		assert.ErrorIs(t, err, ErrNotFound, tok)
		_, err = f.svc.Reserve(f.ctx, tok, f.item.ID, "Bob", "")
		assert.ErrorIs(t, err, ErrNotFound, tok)
	}

	_, err := f.svc.Reserve(f.ctx, f.token(), "no-such-item", "Bob", "")
	assert.ErrorIs(t, err, ErrNotFound)

	// An item from another wishlist is not reachable through this token.
	other, err := f.svc.CreateWishlist(f.ctx, ownerID, WishlistInput{Title: "Other"})
	require.NoError(t, err)
	_, err = f.svc.Reserve(f.ctx, other.AccessToken, f.item.ID, "Bob", "")
	assert.ErrorIs(t, err, ErrNotFound)

	private := false
	_, err = f.svc.UpdateWishlist(f.ctx, ownerID, f.wishlist.ID, WishlistPatch{IsPublic: &private})
	require.NoError(t, err)
	_, err = f.svc.GetPublicWishlist(f.ctx, f.token(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_OwnerOnPublicSurface(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	res, err := f.svc.GetPublicWishlist(f.ctx, f.token(), ownerID)
	require.NoError(t, err)
	require.NotNil(t, res.Owner)
	assert.Nil(t, res.Guest)

	res, err = f.svc.GetPublicWishlist(f.ctx, f.token(), "someone-else")
	require.NoError(t, err)
	require.NotNil(t, res.Guest)

	_, err = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Alice", ownerID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Alice", 100, ownerID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Unreserve(f.ctx, f.token(), f.item.ID, ownerID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_ArchiveLifecycle(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	v, err := f.svc.ArchiveItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, v.Status)

	// Archiving again changes nothing and emits nothing.
	_, err = f.svc.ArchiveItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventItemArchived}, f.notes.kinds())

	_, err = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Bob", "")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", 100, "")
	assert.ErrorIs(t, err, ErrInvalidState)

	pub, err := f.svc.GetPublicWishlist(f.ctx, f.token(), "")
	require.NoError(t, err)
	assert.Empty(t, pub.Guest.Items)

	_, err = f.svc.UnarchiveItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID)
	require.NoError(t, err)
	_, err = f.svc.UnarchiveItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.ArchiveItem(f.ctx, "owner-mallory", f.wishlist.ID, f.item.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_EditItem(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	_, err := f.svc.Contribute(f.ctx, f.token(), f.item.ID, "Bob", 3000, "")
	require.NoError(t, err)
	f.notes.reset()

	lower := int64(2500)
	v, err := f.svc.EditItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID, ItemPatch{PriceCents: &lower})
	require.NoError(t, err)
	assert.True(t, v.FullyFunded)
	assert.Equal(t, 100, v.Progress)

	v, err = f.svc.EditItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID, ItemPatch{ClearPrice: true})
	require.NoError(t, err)
	assert.Nil(t, v.PriceCents)
	assert.False(t, v.FullyFunded)
	assert.Equal(t, 0, v.Progress)

	_, err = f.svc.EditItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID, ItemPatch{})
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventItemUpdated, EventItemUpdated}, f.notes.kinds())

	bad := int64(-1)
	_, err = f.svc.EditItem(f.ctx, ownerID, f.wishlist.ID, f.item.ID, ItemPatch{PriceCents: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_SignalsCarryOnlyIdentifiers(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	_, err := f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Bob", "")
	require.NoError(t, err)

	f.notes.mu.Lock()
	defer f.notes.mu.Unlock()
	require.Len(t, f.notes.signals, 1)
	assert.Equal(t, Signal{Kind: EventItemReserved, WishlistID: f.wishlist.ID, ItemID: f.item.ID}, f.notes.signals[0])
}

func TestService_ObserverSeesOutcomes(t *testing.T) {
	f := newFixture(t, ptr(int64(5000)))

	_, _ = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Bob", "")
	_, _ = f.svc.Reserve(f.ctx, f.token(), f.item.ID, "Carol", "")

	f.obs.mu.Lock()
	defer f.obs.mu.Unlock()
	assert.Equal(t, 1, f.obs.ops["reserve:ok"])
	assert.Equal(t, 1, f.obs.ops["reserve:err"])
	assert.Equal(t, 1, f.obs.ops["create_item:ok"])
}

func TestService_WishlistExists(t *testing.T) {
	f := newFixture(t, nil)

	ok, err := f.svc.WishlistExists(f.ctx, f.wishlist.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.WishlistExists(f.ctx, "not-a-ulid")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.WishlistExists(f.ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.NoError(t, err)
	assert.False(t, ok)
}
