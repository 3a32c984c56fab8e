package realtime

import "time"

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit). Clients have nothing to
	// say beyond keepalives, so this is small.
	maxFrameBytes = 4 << 10 // 4 KiB
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound rate limits (frames per window).
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second
)
