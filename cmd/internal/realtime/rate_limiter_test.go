package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, rl.Allow(t0))
	assert.True(t, rl.Allow(t0.Add(100*time.Millisecond)))
	assert.False(t, rl.Allow(t0.Add(200*time.Millisecond)))

	// First event leaves the window.
	assert.True(t, rl.Allow(t0.Add(1050*time.Millisecond)))
	assert.False(t, rl.Allow(t0.Add(1060*time.Millisecond)))
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, rateLimitEvents, rl.limit)
	assert.Equal(t, rateLimitWindow, rl.window)
}

func TestRateLimiter_RejectedEventsAreNotCounted(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, rl.Allow(t0))
	for i := 1; i <= 9; i++ {
		assert.False(t, rl.Allow(t0.Add(time.Duration(i)*100*time.Millisecond)))
	}
	// Only the accepted event at t0 bounds the window.
	assert.True(t, rl.Allow(t0.Add(time.Second)))
}
