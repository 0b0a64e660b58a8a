package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/integration"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/internal/tenant"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config/restoku-server.yml", "Configuration file path")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.NATS.URL == "" || cfg.Database.DSN == "" {
		log.Fatal().Msg("Kitchen bridge needs nats.url and database.dsn")
	}

	log.Info().Msg("Kitchen bridge starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewPostgresStore(ctx, cfg.Database.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	nc, err := events.Connect(cfg.NATS, cfg.NATS.ClientID+"-kitchen-bridge")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}

	log.Info().Msg("Connected to NATS")

	bus := events.NewNATSBus(nc, cfg.NATS.SubjectPrefix, true)
	tenants := tenant.NewResolver(store, cfg.Tenant.CacheSize, cfg.Tenant.CacheTTL)

	container := appstate.NewContainer()
	container.Register(bus)
	container.Register(tenants)
	container.Register(integration.NewForwarder(bus, tenants, cfg.Integration), "events", "tenant")

	if err := container.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start kitchen forwarder")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to stop kitchen forwarder cleanly")
	}

	log.Info().Msg("Kitchen bridge stopped")
}
