// Package cli provides common CLI initialization utilities.
// This package consolidates the start-up steps shared by cmd/clinic,
// cmd/clinic-notifier and cmd/clinicctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clinic/internal/backend"
	"clinic/internal/config"
	"clinic/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    format,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads the environment, validates it and returns the config
// together with a logger configured from it.
func LoadConfig() (*config.Config, *log.Logger, error) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg, logger, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the configured key-value store.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, backend.Config, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, backend.Config{}, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, bc, fmt.Errorf("open %s backend: %w", bc.Type, err)
	}
	return res, bc, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
