package realtime

import "time"

// RateLimiter caps inbound frames per connection: at most limit events in any
// window. It keeps the last limit accepted timestamps in a ring, so Allow
// never allocates. Not safe for concurrent use; each connection's read loop
// owns its limiter.
type RateLimiter struct {
	limit  int
	window time.Duration

	ring []time.Time
	next int // slot of the oldest accepted event once the ring is full
}

// NewRateLimiter falls back to the gateway defaults for non-positive inputs.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		ring:   make([]time.Time, 0, limit),
	}
}

// Allow records and permits an event at now unless limit events were already
// accepted within the window ending at now. Rejected events are not recorded.
func (r *RateLimiter) Allow(now time.Time) bool {
	if len(r.ring) < r.limit {
		r.ring = append(r.ring, now)
		return true
	}
	if r.ring[r.next].After(now.Add(-r.window)) {
		return false
	}
	r.ring[r.next] = now
	r.next = (r.next + 1) % r.limit
	return true
}
