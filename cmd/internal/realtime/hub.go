package realtime

import (
	"log/slog"
	"sync"
	"time"

	v1 "wishsync/shared/contracts/realtime/v1"
)

// Hub maps wishlist ids to their subscriber topics. Topics are created on the
// first subscription and dropped with the last one, so publishing to a
// wishlist nobody watches is a map miss.
type Hub struct {
	log *slog.Logger
	obs Observer

	mu     sync.RWMutex
	topics map[string]*Topic
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log,
		obs:    nopObserver{},
		topics: make(map[string]*Topic),
	}
}

// SetObserver installs a fan-out observer. Call before serving.
func (h *Hub) SetObserver(o Observer) {
	if o != nil {
		h.obs = o
	}
}

// Subscribe registers client under its wishlist topic.
func (h *Hub) Subscribe(client *Client) *Topic {
	h.mu.Lock()
	t, ok := h.topics[client.WishlistID]
	if !ok {
		t = NewTopic(h.log, client.WishlistID)
		h.topics[client.WishlistID] = t
	}
	// Joined under the hub lock so a concurrent Unsubscribe cannot drop the topic in between.
	t.Join(client)
	h.mu.Unlock()

	h.obs.SubscriberJoined()
	return t
}

// Unsubscribe removes the session from the wishlist topic and drops the topic when empty.
func (h *Hub) Unsubscribe(wishlistID, sessionID string) {
	h.mu.Lock()
	t, ok := h.topics[wishlistID]
	if !ok {
		h.mu.Unlock()
		return
	}
	remaining, removed := t.Leave(sessionID)
	if remaining == 0 {
		delete(h.topics, wishlistID)
	}
	h.mu.Unlock()

	if removed {
		h.obs.SubscriberLeft()
	}
}

// Subscribers returns the number of connections watching wishlistID.
func (h *Hub) Subscribers(wishlistID string) int {
	h.mu.RLock()
	t := h.topics[wishlistID]
	h.mu.RUnlock()
	return t.Len()
}

// Publish pushes a signal envelope to every subscriber of the wishlist.
func (h *Hub) Publish(sig v1.SignalPayload) (delivered, dropped int) {
	h.mu.RLock()
	t := h.topics[sig.WishlistID]
	h.mu.RUnlock()
	if t == nil {
		h.obs.SignalPublished(sig.Event, 0, 0)
		return 0, 0
	}

	now := time.Now().UTC()
	id, err := NewEnvelopeID(now)
	if err != nil {
		h.log.Error("hub.envelope.id.fail", "err", err)
		return 0, 0
	}
	env, err := v1.NewEnvelope(v1.TypeSignal, id, sig.WishlistID, now, sig)
	if err != nil {
		h.log.Error("hub.envelope.marshal.fail", "err", err)
		return 0, 0
	}

	delivered, dropped = t.Broadcast(env)
	h.obs.SignalPublished(sig.Event, delivered, dropped)
	if dropped > 0 {
		h.log.Info("hub.publish.dropped", "wishlist_id", sig.WishlistID, "event", sig.Event, "dropped", dropped)
	}
	return delivered, dropped
}
