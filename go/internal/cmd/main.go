package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/stillpoint/go/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := config.SetupLogging(cfg.LogLevel); err != nil {
		log.Warn().Err(err).Msg("invalid log level, using info")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	g := startBackground(ctx, services)

	server := setupServer(cfg, services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Dur("tick_interval", cfg.TickInterval).
			Bool("bus", cfg.BusEnabled()).
			Msg("stillpoint server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	cancel()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("background service failed")
	}

	log.Info().Msg("stillpoint shutdown complete")
}

// startBackground runs the session manager and the hub. Cancelling ctx stops
// every session and drains its events; the hub stops only after that, so the
// final events reach clients before their sockets close.
func startBackground(ctx context.Context, services *Services) *errgroup.Group {
	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))

	g := new(errgroup.Group)
	g.Go(func() error {
		defer stopHub()
		return services.Sessions.Run(ctx)
	})
	g.Go(func() error {
		services.Gateway.Start(hubCtx)
		return nil
	})
	return g
}
