// Package app wires the wishsync server runtime: config, logging, storage,
// HTTP routes, the realtime gateway and the optional Redis relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wishsync/cmd/identity/ids"
	"wishsync/cmd/internal/api"
	"wishsync/cmd/internal/dbmigrate"
	"wishsync/cmd/internal/owner"
	"wishsync/cmd/internal/realtime"
	"wishsync/cmd/internal/wishlist"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App is the wishsync server runtime. It owns the DB pool and Redis client.
type App struct {
	cfg Config
	log Logger

	pool  *pgxpool.Pool
	rdb   *redis.Client
	relay *realtime.RedisRelay

	metrics *Metrics
	svc     *wishlist.Service
	api     *api.Handler
	ws      *realtime.WSGateway
}

// New constructs a fully wired App. Without WISHSYNC_DATABASE_URL it runs on
// the in-memory store; without WISHSYNC_REDIS_URL signals stay in-process.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}

	a := &App{cfg: cfg, log: log, metrics: NewMetrics()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(log)
	hub.SetObserver(a.metrics)

	notifier, err := a.openNotifier(ctx, hub)
	if err != nil {
		return nil, err
	}

	var verifier owner.Verifier
	if cfg.JWTSecret != "" {
		v, err := owner.NewJWTVerifier(cfg.JWTSecret, owner.WithIssuer(cfg.JWTIssuer))
		if err != nil {
			return nil, err
		}
		verifier = v
	} else {
		log.Warn("owner.auth.disabled", "reason", "WISHSYNC_JWT_SECRET not set")
	}

	a.svc, err = wishlist.NewService(store,
		wishlist.WithNotifier(notifier),
		wishlist.WithObserver(a.metrics),
		wishlist.WithLogger(log),
		wishlist.WithStrictFunding(cfg.StrictFunding),
	)
	if err != nil {
		return nil, err
	}

	a.api, err = api.NewHandler(log, a.svc, verifier, api.Config{MaxBodyBytes: cfg.MaxBodyBytes})
	if err != nil {
		return nil, err
	}

	gwCfg := realtime.DefaultGatewayConfig()
	gwCfg.AllowedOrigins = cfg.WSAllowedOrigins
	gwCfg.OriginRequired = cfg.WSOriginRequired
	gwCfg.RequireSubprotocol = cfg.WSRequireSubprotocol
	if cfg.WSSendQueueSize > 0 {
		gwCfg.SendQueueSize = cfg.WSSendQueueSize
	}
	if cfg.WSWriteTimeout > 0 {
		gwCfg.WriteTimeout = cfg.WSWriteTimeout
	}
	a.ws = realtime.NewWSGateway(log, hub, a.svc, gwCfg)

	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context) (wishlist.Store, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		return wishlist.NewInMemoryStore(), nil
	}

	if a.cfg.AutoMigrate {
		if err := dbmigrate.Up(ctx, a.cfg.DatabaseURL, a.log); err != nil {
			return nil, err
		}
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a.pool = pool

	// The app owns the pool; PostgresStore.Close is a no-op.
	st, err := wishlist.NewPostgresStore(pool, wishlist.WithSchema(a.cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)
	return st, nil
}

func (a *App) openNotifier(ctx context.Context, hub *realtime.Hub) (wishlist.Notifier, error) {
	if a.cfg.RedisURL == "" {
		return realtime.NewHubNotifier(hub), nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.rdb = redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	instance, err := ids.NewULID(time.Now())
	if err != nil {
		return nil, err
	}
	a.relay, err = realtime.NewRedisRelay(a.log, hub, a.rdb, a.cfg.RelayChannel, instance)
	if err != nil {
		return nil, err
	}
	a.log.Info("relay.enabled", "channel", a.cfg.RelayChannel, "instance", instance)
	return a.relay, nil
}

// Handler returns the full middleware-wrapped route tree.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	return WithRequestLogging(h, a.log)
}

// Run serves HTTP (and the relay subscriber, if enabled) until ctx is done or
// a component fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start",
			"addr", a.cfg.HTTPAddr,
			"base_url", runtimeBaseURL(a.cfg.HTTPAddr),
			"ws_url", wsBaseURL(runtimeBaseURL(a.cfg.HTTPAddr))+"/ws/wishlists/{id}",
			"db_enabled", a.pool != nil,
			"relay_enabled", a.relay != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	if a.relay != nil {
		g.Go(func() error {
			if err := a.relay.Run(gctx); err != nil && gctx.Err() == nil {
				a.log.Error("relay.fail", "err", err)
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	if cerr := a.Close(); cerr != nil {
		a.log.Error("app.close.fail", "err", cerr)
	}
	a.log.Info("server.stopped")
	return err
}

// Close releases the pool and Redis client. Safe to call more than once.
func (a *App) Close() error {
	var err error
	if a.rdb != nil {
		err = a.rdb.Close()
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return err
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
