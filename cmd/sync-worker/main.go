package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/server"
	"github.com/practicehub/practice-server/internal/storage"
	"github.com/practicehub/practice-server/internal/xero"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config/practice-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to storage
	var store storage.Store
	if cfg.Database.Driver == "memory" {
		store = storage.NewMemoryStore()
	} else {
		store, err = storage.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open storage")
		}
	}
	defer store.Close()

	// Xero integration
	creds, err := xero.NewCredentialManager(&cfg.Xero, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Xero credential manager")
	}
	xeroClient := xero.NewClient(&cfg.Xero, creds)
	orchestrator := xero.NewOrchestrator(xeroClient, log.Logger)

	// NATS is mandatory for the worker, it has no other work source
	if cfg.NATS.URL == "" {
		log.Fatal().Msg("NATS URL is required for the sync worker")
	}
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("sync-worker"),
		nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
		nats.ReconnectWait(cfg.NATS.ReconnectInterval),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()
	log.Info().Msg("Connected to NATS")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriber := server.NewNATSSubscriber(nc, store, orchestrator)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Sync subscriber failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()
	wg.Wait()

	log.Info().Msg("Sync worker stopped")
}
