// Package realtime contains the wishlist change-signal fan-out: per-wishlist
// topics, the WebSocket gateway and the Redis relay for multi-instance setups.
package realtime
