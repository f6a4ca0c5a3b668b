package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motorhub-backend/bootstrap"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, app, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("Store connected")
	log.Info().Msgf("Server running at http://localhost:%s", cfg.Port)
	log.Info().Msgf("Health check: http://localhost:%s/health/json", cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Fiber.Listen(":" + cfg.Port) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("close store")
	}
}
