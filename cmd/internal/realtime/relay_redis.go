package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"wishsync/cmd/internal/wishlist"
	v1 "wishsync/shared/contracts/realtime/v1"

	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis pub/sub channel signals travel on.
const DefaultRelayChannel = "wishsync:signals"

// RedisRelay fans signals out across server instances.
//
// Notify delivers to the local hub immediately and publishes to Redis; Run
// forwards signals published by other instances into the local hub. Each
// message carries the publishing instance id so an instance never delivers
// its own signal twice.
type RedisRelay struct {
	log      *slog.Logger
	hub      *Hub
	rdb      *redis.Client
	channel  string
	instance string
}

type relayMessage struct {
	Origin string           `json:"origin"`
	Signal v1.SignalPayload `json:"signal"`
}

// NewRedisRelay constructs a relay. instanceID must be unique per process.
func NewRedisRelay(log *slog.Logger, hub *Hub, rdb *redis.Client, channel, instanceID string) (*RedisRelay, error) {
	if hub == nil || rdb == nil {
		return nil, errors.New("realtime: relay needs a hub and a redis client")
	}
	if instanceID == "" {
		return nil, errors.New("realtime: relay needs an instance id")
	}
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisRelay{log: log, hub: hub, rdb: rdb, channel: channel, instance: instanceID}, nil
}

// Notify implements wishlist.Notifier.
func (r *RedisRelay) Notify(ctx context.Context, sig wishlist.Signal) {
	p := signalPayload(sig)
	r.hub.Publish(p)

	data, err := json.Marshal(relayMessage{Origin: r.instance, Signal: p})
	if err != nil {
		r.log.Error("relay.marshal.fail", "err", err)
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		// Other instances miss this signal; their clients converge on the next one or on reconnect.
		r.log.Warn("relay.publish.fail", "wishlist_id", sig.WishlistID, "event", sig.Kind, "err", err)
	}
}

// Run subscribes to the relay channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = pubsub.Close() }()

	// Receive the subscription confirmation so errors surface here, not later.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("relay.subscribe.ok", "channel", r.channel, "instance", r.instance)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.log.Info("relay.message.bad", "err", err)
		return
	}
	if m.Origin == r.instance {
		return
	}
	if m.Signal.WishlistID == "" || !v1.KnownEvent(m.Signal.Event) {
		r.log.Info("relay.message.invalid", "event", m.Signal.Event)
		return
	}
	r.hub.Publish(m.Signal)
}
