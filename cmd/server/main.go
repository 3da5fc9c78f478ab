// Package main is the entry point for patrolplan, the service that spreads a
// fixed pool of police officers across Jamaica's parishes according to
// predicted crime risk and retrains its risk model as intelligence arrives.
//
// Startup sequence:
//  1. Load configuration from the environment (.env supported)
//  2. Wire the container: database, repositories, services, jobs
//  3. Start the HTTP server and the background scheduler
//  4. Wait for SIGINT/SIGTERM and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/di"
	"github.com/islandsafe/patrolplan/internal/server"
	"github.com/islandsafe/patrolplan/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting patrolplan")

	wireCtx, wireCancel := context.WithTimeout(context.Background(), time.Minute)
	container, err := di.Wire(wireCtx, cfg, log)
	wireCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Container: container,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()
	log.Info().
		Int("port", cfg.Port).
		Dur("check_interval", cfg.CheckInterval).
		Dur("training_interval", cfg.TrainingInterval).
		Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop waits for a running retrain cycle before the database closes.
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
