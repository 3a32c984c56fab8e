package app

import (
	"errors"
	"testing"

	"wishsync/cmd/internal/wishlist"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "conflict", resultLabel(wishlist.OpError{Op: "reserve", Kind: wishlist.ErrConflict}))
	assert.Equal(t, "invalid_state", resultLabel(wishlist.ErrInvalidState))
	assert.Equal(t, "error", resultLabel(errors.New("db down")))
}

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics()

	m.MutationDone("reserve", nil)
	m.MutationDone("reserve", wishlist.ErrConflict)
	m.MutationDone("reserve", wishlist.ErrConflict)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("reserve", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("reserve", "conflict")))

	m.SubscriberJoined()
	m.SubscriberJoined()
	m.SubscriberLeft()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscribers))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.joins))

	m.SignalPublished("item_reserved", 3, 1)
	m.SignalPublished("item_reserved", 0, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.signals.WithLabelValues("item_reserved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.deliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("dropped")))
}
