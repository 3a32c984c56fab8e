package realtime

import (
	"log/slog"
	"sync"

	v1 "wishsync/shared/contracts/realtime/v1"
)

// Topic is the subscriber set of one wishlist.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Topic struct {
	log        *slog.Logger
	WishlistID string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewTopic constructs an empty topic.
func NewTopic(log *slog.Logger, wishlistID string) *Topic {
	return &Topic{
		log:        log,
		WishlistID: wishlistID,
		members:    make(map[string]*Client),
	}
}

// Join adds a client to the topic.
func (t *Topic) Join(client *Client) {
	if t == nil || client == nil || client.SessionID == "" {
		return
	}

	t.mu.Lock()
	t.members[client.SessionID] = client
	n := len(t.members)
	t.mu.Unlock()

	t.log.Debug("topic.member.join", "wishlist_id", t.WishlistID, "session_id", client.SessionID, "members", n)
}

// Leave removes a client and signals its shutdown. It returns the remaining
// member count and whether the session was a member.
func (t *Topic) Leave(sessionID string) (remaining int, removed bool) {
	if t == nil || sessionID == "" {
		return 0, false
	}

	t.mu.Lock()
	cl := t.members[sessionID]
	delete(t.members, sessionID)
	n := len(t.members)
	t.mu.Unlock()

	// Removed from the set first so no publisher still holds it while it shuts down.
	if cl != nil {
		cl.Close()
	}

	t.log.Debug("topic.member.leave", "wishlist_id", t.WishlistID, "session_id", sessionID, "members", n)
	return n, cl != nil
}

// Len returns the current member count.
func (t *Topic) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// Broadcast fans env out to every member. Non-blocking: members with a full
// queue, or shutting down, miss this envelope.
func (t *Topic) Broadcast(env v1.Envelope) (delivered, dropped int) {
	if t == nil {
		return 0, 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.members {
		if m == nil {
			continue
		}
		if m.offer(env) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}
