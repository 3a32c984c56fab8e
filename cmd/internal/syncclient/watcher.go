package syncclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	v1 "wishsync/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/singleflight"
)

// DefaultRetryDelay is the fixed pause between reconnect attempts.
const DefaultRetryDelay = 2 * time.Second

const (
	watchReadLimit = 64 << 10
	refetchKey     = "refetch"
)

// FetchFunc reads the authoritative view over HTTP.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// WatcherOptions tunes a Watcher. Zero values pick the defaults.
type WatcherOptions struct {
	// RetryDelay is the fixed reconnect delay (DefaultRetryDelay).
	RetryDelay time.Duration
	// HTTPClient is used for the WebSocket handshake.
	HTTPClient *http.Client
	// Header is sent with the handshake (e.g. Origin).
	Header http.Header
}

// Watcher keeps a local copy of a wishlist view in sync. Signals from the
// gateway are only invalidation hints: every one triggers a full refetch and
// the fetched view replaces the previous one wholesale. On disconnect it
// waits RetryDelay and reconnects, forever, until its context ends.
type Watcher[T any] struct {
	log      *slog.Logger
	url      string
	fetch    FetchFunc[T]
	onUpdate func(T)
	opts     WatcherOptions

	sf     singleflight.Group
	dirty  atomic.Bool
	runCtx context.Context

	mu   sync.RWMutex
	view T
	have bool

	connects     atomic.Int64
	retryPending atomic.Bool
}

// NewWatcher builds a watcher for the gateway at wsURL. onUpdate may be nil.
func NewWatcher[T any](log *slog.Logger, wsURL string, fetch FetchFunc[T], onUpdate func(T), opts WatcherOptions) (*Watcher[T], error) {
	if wsURL == "" {
		return nil, errors.New("syncclient: empty watch url")
	}
	if fetch == nil {
		return nil, errors.New("syncclient: nil fetch func")
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Watcher[T]{
		log:      log,
		url:      wsURL,
		fetch:    fetch,
		onUpdate: onUpdate,
		opts:     opts,
	}, nil
}

// View returns the latest fetched view; ok is false before the first fetch succeeds.
func (w *Watcher[T]) View() (view T, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.view, w.have
}

// Connects reports how many connections have been established.
func (w *Watcher[T]) Connects() int64 { return w.connects.Load() }

// Run connects and keeps reconnecting until ctx is done, then returns ctx.Err().
func (w *Watcher[T]) Run(ctx context.Context) error {
	w.mu.Lock()
	w.runCtx = ctx
	w.mu.Unlock()

	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn("watch.disconnected", "url", w.url, "err", err, "retry_in", w.opts.RetryDelay)

		t := time.NewTimer(w.opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Refresh schedules a refetch. Callers use it after a failed mutation so the
// view reflects the state that caused the failure.
func (w *Watcher[T]) Refresh() {
	w.mu.RLock()
	ctx := w.runCtx
	w.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	w.trigger(ctx)
}

func (w *Watcher[T]) session(ctx context.Context) error {
	dialOpts := &websocket.DialOptions{
		HTTPClient:   w.opts.HTTPClient,
		HTTPHeader:   w.opts.Header,
		Subprotocols: []string{v1.Subprotocol},
	}
	conn, _, err := websocket.Dial(ctx, w.url, dialOpts)
	if err != nil {
		return err
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(watchReadLimit)

	w.connects.Add(1)
	w.log.Info("watch.connected", "url", w.url)

	for {
		var env v1.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			w.log.Debug("watch.envelope.invalid", "err", err)
			continue
		}
		switch env.Type {
		case v1.TypeSubscribed:
			// The gateway registers the connection before confirming, so
			// no change after this read can go unsignalled. Anything may
			// have changed while disconnected.
			w.trigger(ctx)
		case v1.TypeSignal:
			w.trigger(ctx)
		case v1.TypeError:
			w.log.Warn("watch.server.error", "payload", string(env.Payload))
		}
	}
}

// trigger coalesces refetches: at most one is in flight, and a signal that
// arrives during it causes exactly one more.
func (w *Watcher[T]) trigger(ctx context.Context) {
	w.dirty.Store(true)
	go func() {
		for w.dirty.Load() && ctx.Err() == nil {
			_, _, _ = w.sf.Do(refetchKey, func() (any, error) {
				for w.dirty.Swap(false) {
					w.refetch(ctx)
				}
				return nil, nil
			})
		}
	}()
}

func (w *Watcher[T]) refetch(ctx context.Context) {
	view, err := w.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("watch.refetch.fail", "url", w.url, "err", err, "retry_in", w.opts.RetryDelay)
			w.scheduleRetry(ctx)
		}
		return
	}

	w.mu.Lock()
	w.view = view
	w.have = true
	w.mu.Unlock()

	if w.onUpdate != nil {
		w.onUpdate(view)
	}
}

// scheduleRetry refetches after RetryDelay so a failed read does not leave the
// view stale while the socket stays quiet. At most one retry is pending.
func (w *Watcher[T]) scheduleRetry(ctx context.Context) {
	if !w.retryPending.CompareAndSwap(false, true) {
		return
	}
	t := time.NewTimer(w.opts.RetryDelay)
	go func() {
		defer t.Stop()
		select {
		case <-ctx.Done():
			w.retryPending.Store(false)
		case <-t.C:
			w.retryPending.Store(false)
			w.trigger(ctx)
		}
	}()
}
