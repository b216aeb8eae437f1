package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"clinic/internal/amqp"
	"clinic/internal/cli"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/metrics"
	"clinic/internal/notify"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting clinic-notifier", log.FieldOperation, log.OpStartup)

	if !cfg.UsesAMQP() {
		logger.Error("AMQP_URL is required: without a broker the clinic server delivers notifications itself")
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid time zone", log.FieldError, err.Error())
		os.Exit(1)
	}

	startCtx := context.Background()
	res, _, err := cli.OpenBackend(startCtx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
	}()

	l, err := ledger.Open(startCtx, res.Store, ledger.WithLocation(loc), ledger.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err.Error())
		os.Exit(1)
	}

	m := metrics.New(prometheus.NewRegistry())
	queue := notify.NewQueue(notify.NewLogSender(logger),
		notify.WithQueueLogger(logger),
		notify.WithDeliveryObserver(m))

	w, mirror, err := cli.NewNotifier(startCtx, cfg, l, res, queue, logger)
	if err != nil {
		logger.Error("Failed to initialize notifier", log.FieldError, err.Error())
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if n := w.Stop(); n > 0 {
			logger.Warn("Scheduled reminders dropped on shutdown", "count", n)
		}
	})

	if mirror != nil {
		// Entries written while the notifier was down never got a message.
		logger.Info("Performing startup sync check...")
		if synced, err := mirror.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", log.FieldError, err.Error(), "synced", synced)
		}
	} else {
		logger.Info("Spreadsheet mirror disabled, ledger sync messages will be acknowledged only")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		err := client.Consume(gctx, w.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		w.Stop()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	queue.Flush(context.Background())
	logger.Info("Notifier stopped", log.FieldOperation, log.OpShutdown)
}
