package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/practicehub/practice-server/internal/api"
	"github.com/practicehub/practice-server/internal/config"
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
	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	log.Info().Str("driver", cfg.Database.Driver).Msg("Storage ready")

	// Xero integration
	creds, err := xero.NewCredentialManager(&cfg.Xero, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Xero credential manager")
	}
	xeroClient := xero.NewClient(&cfg.Xero, creds)
	orchestrator := xero.NewOrchestrator(xeroClient, log.Logger)

	// Optional NATS connection; the API hands sync work to the worker
	// through it
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("practice-server"),
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
			log.Warn().Err(err).Msg("Failed to connect to NATS, syncs will run inline")
			nc = nil
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	// Start REST API server
	apiServer := api.NewRESTServer(cfg, store, orchestrator, creds, nc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	wg.Wait()

	log.Info().Msg("Practice server stopped")
}

// openStore connects the configured storage backend and applies
// migrations when asked to
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Driver == "memory" {
		return storage.NewMemoryStore(), nil
	}

	if cfg.Database.Migrate {
		if err := storage.RunMigrations(cfg.Database.DSN); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info().Msg("Migrations applied")
	}

	return storage.NewPostgresStore(cfg.Database.DSN)
}
