package realtime

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"wishsync/cmd/internal/wishlist"
	v1 "wishsync/shared/contracts/realtime/v1"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelay_DeliverSkipsOwnAndInvalid(t *testing.T) {
	hub := NewHub(testLogger())
	c := NewClient("wl", "s1", 8)
	hub.Subscribe(c)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = rdb.Close() }()

	relay, err := NewRedisRelay(testLogger(), hub, rdb, "", "inst-a")
	require.NoError(t, err)

	mk := func(origin, event string) string {
		b, err := json.Marshal(relayMessage{Origin: origin, Signal: v1.SignalPayload{Event: event, WishlistID: "wl"}})
		require.NoError(t, err)
		return string(b)
	}

	relay.deliver(mk("inst-a", v1.EventItemReserved))
	relay.deliver(mk("inst-b", "item_exploded"))
	relay.deliver("{not json")
	assert.Len(t, c.Send, 0)

	relay.deliver(mk("inst-b", v1.EventItemReserved))
	assert.Len(t, c.Send, 1)
}

func TestNewRedisRelay_Validation(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = rdb.Close() }()

	_, err := NewRedisRelay(nil, nil, rdb, "", "x")
	assert.Error(t, err)
	_, err = NewRedisRelay(nil, NewHub(nil), nil, "", "x")
	assert.Error(t, err)
	_, err = NewRedisRelay(nil, NewHub(nil), rdb, "", "")
	assert.Error(t, err)
}

// Requires a reachable Redis (WISHSYNC_REDIS_URL=redis://localhost:6379/0).
func TestRedisRelay_CrossInstanceIntegration(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("WISHSYNC_REDIS_URL"))
	if url == "" {
		t.Skip("WISHSYNC_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdbA := redis.NewClient(opts)
	rdbB := redis.NewClient(opts)
	defer func() { _ = rdbA.Close() }()
	defer func() { _ = rdbB.Close() }()

	channel := "wishsync:test:" + time.Now().UTC().Format("150405.000000000")

	hubA, hubB := NewHub(testLogger()), NewHub(testLogger())
	relayA, err := NewRedisRelay(testLogger(), hubA, rdbA, channel, "inst-a")
	require.NoError(t, err)
	relayB, err := NewRedisRelay(testLogger(), hubB, rdbB, channel, "inst-b")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := rdbA.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] == 2
	}, 5*time.Second, 20*time.Millisecond)

	onA := NewClient("wl-1", "a", 8)
	onB := NewClient("wl-1", "b", 8)
	hubA.Subscribe(onA)
	hubB.Subscribe(onB)

	relayA.Notify(ctx, wishlist.Signal{Kind: wishlist.EventItemReserved, WishlistID: "wl-1", ItemID: "it-1"})

	require.Eventually(t, func() bool { return len(onB.Send) == 1 }, 5*time.Second, 10*time.Millisecond)
	// Local delivery happens once; the echo from Redis is skipped.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, onA.Send, 1)
}
