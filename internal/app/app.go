package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/memory"
	"github.com/vovakirdan/roomchat/internal/store/pebble"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("storage", cfg.Storage).Msg("message store initialized")

	hub := core.NewHub(st, logger)
	server := transporthttp.NewServer(hub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage {
	case config.StoragePebble:
		return pebble.New(cfg.DataDir)
	case config.StorageSQLite:
		return sqlite.New(cfg.DatabasePath)
	case config.StorageMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the message store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
