package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/api"
	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/auth"
	"github.com/restoku/restoku-server/internal/cart"
	"github.com/restoku/restoku-server/internal/chat"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/favorites"
	"github.com/restoku/restoku-server/internal/integration"
	"github.com/restoku/restoku-server/internal/loyalty"
	"github.com/restoku/restoku-server/internal/notify"
	"github.com/restoku/restoku-server/internal/server"
	"github.com/restoku/restoku-server/internal/session"
	"github.com/restoku/restoku-server/internal/statestore"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/storefront"
	"github.com/restoku/restoku-server/internal/tenant"
)

// visitorStateTTL bounds how long an idle cart or favorites list is kept
const visitorStateTTL = 30 * 24 * time.Hour

type application struct {
	container *appstate.Container
	server    *api.Server
	closers   []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to release resource")
		}
	}
}

// build connects the backing services and registers every provider.
// Providers are started by the caller.
func build(ctx context.Context, cfg *config.Config, forwardKitchen bool) (*application, error) {
	app := &application{container: appstate.NewContainer()}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, store.Close)

	var (
		state       statestore.Store
		revocations auth.Revocations
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			app.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		state = statestore.NewRedisStore(client, cfg.Redis.KeyPrefix+"state:", visitorStateTTL)
		revocations = auth.NewRedisRevocations(client, cfg.Redis.KeyPrefix)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	} else {
		state = statestore.NewMemoryStore(visitorStateTTL)
		revocations = auth.NewMemoryRevocations()
		log.Info().Msg("Redis not configured, keeping visitor state in memory")
	}

	bus := openBus(cfg)

	authSvc := auth.NewService(store, auth.NewJWTManager(&cfg.JWT), revocations)
	tenants := tenant.NewResolver(store, cfg.Tenant.CacheSize, cfg.Tenant.CacheTTL)
	chatSvc := chat.NewService(store, bus)

	svc := api.Services{
		Store:     store,
		Auth:      authSvc,
		Sessions:  session.NewResolver(authSvc, cfg.Session),
		Tenants:   tenants,
		Scopes:    appstate.NewScopes(cfg.Session.ScopeIdleTTL),
		Carts:     cart.NewProvider(state),
		Favorites: favorites.NewProvider(state),
		Toasts:    notify.NewToastProvider(),
		Layouts:   storefront.NewLayoutProvider(),
		Locations: storefront.NewLocationProvider(),
		Homepages: storefront.NewHomepages(store, cfg.Tenant.CacheSize, cfg.Tenant.CacheTTL),
		Notifier:  notify.NewNotifier(store, bus),
		Chat:      chatSvc,
		Hub:       chat.NewHub(chatSvc),
		Loyalty:   loyalty.NewService(store),
		Bus:       bus,
	}

	c := app.container
	c.Register(bus)
	c.Register(svc.Tenants)
	c.Register(svc.Scopes)
	c.Register(svc.Homepages)
	c.Register(svc.Carts)
	c.Register(svc.Favorites)
	c.Register(svc.Toasts)
	c.Register(svc.Layouts)
	c.Register(svc.Locations)
	c.Register(svc.Notifier, "events")
	c.Register(svc.Loyalty)
	c.Register(svc.Chat, "events")
	c.Register(svc.Hub, "chat")
	c.Register(server.NewEventSubscriber(bus, store, tenants), "events", "tenant")
	c.Register(server.NewMailer(bus, store, tenants, []byte(cfg.Secrets.Key)), "events", "tenant")
	if forwardKitchen {
		c.Register(integration.NewForwarder(bus, tenants, cfg.Integration), "events", "tenant")
	}

	srv, err := api.NewServer(cfg, svc)
	if err != nil {
		app.close()
		return nil, err
	}
	app.server = srv
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Database.DSN == "" {
		log.Warn().Msg("Database not configured, data is kept in memory and lost on exit")
		return storage.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := storage.NewPostgresStore(connectCtx, cfg.Database.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info().Msg("Connected to database")
	return store, nil
}

// openBus connects to NATS when configured. Without NATS, events stay in process.
func openBus(cfg *config.Config) events.Bus {
	if cfg.NATS.URL == "" {
		log.Info().Msg("NATS not configured, running in standalone mode")
		return events.NewLocalBus(cfg.NATS.SubjectPrefix)
	}

	log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")
	nc, err := events.Connect(cfg.NATS, cfg.NATS.ClientID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
		return events.NewLocalBus(cfg.NATS.SubjectPrefix)
	}
	log.Info().Msg("Connected to NATS")
	return events.NewNATSBus(nc, cfg.NATS.SubjectPrefix, true)
}
