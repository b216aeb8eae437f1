package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"clinic/internal/cli"
	"clinic/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting clinic server", log.FieldOperation, log.OpStartup)

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize clinic", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := app.Server()
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"mirror", cfg.MirrorBackend,
			"amqp", cfg.UsesAMQP())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.Caches.Run(gctx, cfg.CacheSweepInterval)
	})
	g.Go(func() error {
		return app.Queue.Run(gctx)
	})
	if app.Mirror != nil {
		g.Go(func() error {
			if _, err := app.Mirror.StartupSyncCheck(gctx); err != nil {
				logger.Warn("Startup mirror sync incomplete", log.FieldError, err.Error())
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := app.Close(); err != nil {
		logger.Error("Cleanup failed", log.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
