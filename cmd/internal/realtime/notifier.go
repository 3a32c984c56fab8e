package realtime

import (
	"context"

	"wishsync/cmd/internal/wishlist"
	v1 "wishsync/shared/contracts/realtime/v1"
)

// HubNotifier delivers wishlist signals to the local hub.
type HubNotifier struct {
	Hub *Hub
}

// NewHubNotifier wires a hub as a wishlist.Notifier.
func NewHubNotifier(h *Hub) *HubNotifier { return &HubNotifier{Hub: h} }

// Notify implements wishlist.Notifier.
func (n *HubNotifier) Notify(_ context.Context, sig wishlist.Signal) {
	n.Hub.Publish(signalPayload(sig))
}

func signalPayload(sig wishlist.Signal) v1.SignalPayload {
	return v1.SignalPayload{
		Event:      string(sig.Kind),
		WishlistID: sig.WishlistID,
		ItemID:     sig.ItemID,
	}
}
