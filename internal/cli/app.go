package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clinic/internal/amqp"
	"clinic/internal/appointments"
	"clinic/internal/backend"
	"clinic/internal/cache"
	"clinic/internal/config"
	apphttp "clinic/internal/http"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/metrics"
	"clinic/internal/notify"
	"clinic/internal/render"
	"clinic/internal/report"
	"clinic/internal/services"
	"clinic/internal/sheets"
	"clinic/internal/worker"
)

// App is the fully wired clinic: storage, ledger, appointment book,
// reporting, rendering and the notification pipeline.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Backend  *backend.BackendResult
	Ledger   *ledger.Store
	Book     *appointments.Book
	Service  *services.ClinicService
	Reports  *report.Builder
	Renderer *render.Renderer
	Printer  *render.Printer
	Metrics  *metrics.Metrics
	Caches   *cache.Manager
	Queue    *notify.Queue
	Worker   *worker.NotificationWorker
	Mirror   *worker.Mirror

	cleanup []backend.CleanupFunc
}

// NewNotifier builds the notification worker for the given ledger and
// store. The mirror is nil when no spreadsheet mirror is configured.
func NewNotifier(ctx context.Context, cfg *config.Config, l *ledger.Store, res *backend.BackendResult, queue *notify.Queue, logger *log.Logger, opts ...worker.MirrorOption) (*worker.NotificationWorker, *worker.Mirror, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	var sheet sheets.LedgerMirror
	sheet, err = backend.NewFactory(logger).CreateMirror(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s mirror: %w", bc.Mirror, err)
	}

	var mirror *worker.Mirror
	if sheet != nil {
		mirror, err = worker.NewMirror(ctx, l, sheet, res.Store, logger, opts...)
		if err != nil {
			return nil, nil, err
		}
	}
	w := worker.NewNotificationWorker(queue, mirror,
		worker.WithStaleAfter(cfg.ReminderStaleAfter),
		worker.WithLogger(logger))
	return w, mirror, nil
}

// Build opens storage and wires every component from cfg. With an AMQP URL
// the service publishes to the broker; without one notifications and
// mirror requests are handled in this process.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	res, _, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, Backend: res}
	if res.Cleanup != nil {
		app.cleanup = append(app.cleanup, res.Cleanup)
	}

	app.Metrics = metrics.New(prometheus.NewRegistry())

	app.Ledger, err = ledger.Open(ctx, res.Store,
		ledger.WithLocation(loc),
		ledger.WithLogger(logger),
		ledger.WithObserver(app.Metrics),
		ledger.WithInvoiceTemplate(cfg.InvoiceTemplate))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if cfg.SeedExpenses {
		n, err := app.Ledger.Seed(ctx)
		if err != nil {
			logger.Warn("Seeding default expenses failed", log.FieldError, err.Error())
		} else if n > 0 {
			logger.Info("Seeded default expenses", "count", n)
		}
	}

	app.Book, err = appointments.Open(ctx, res.Store,
		appointments.WithLocation(loc),
		appointments.WithLogger(logger))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open appointment book: %w", err)
	}

	app.Renderer, err = render.New(
		render.WithClinic(render.Clinic{
			Name:    cfg.ClinicName,
			Address: cfg.ClinicAddress,
			Phone:   cfg.ClinicPhone,
			Email:   cfg.ClinicEmail,
		}),
		render.WithCatalog(app.Book.Catalog()),
		render.WithLocation(loc))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	app.Printer = render.NewPrinter(app.Renderer, app.Ledger, logger)

	app.Reports = report.NewBuilder(app.Ledger, loc,
		report.WithCache(cfg.CacheSize, cfg.CacheTTL),
		report.WithLogger(logger))
	app.Caches = cache.NewManager(logger)
	app.Reports.Register(app.Caches)
	app.Metrics.RegisterCache("monthly_reports", func() cache.Stats {
		monthly, _ := app.Reports.CacheStats()
		return monthly
	})
	app.Metrics.RegisterCache("comprehensive_reports", func() cache.Stats {
		_, comprehensive := app.Reports.CacheStats()
		return comprehensive
	})

	app.Queue = notify.NewQueue(notify.NewLogSender(logger),
		notify.WithQueueLogger(logger),
		notify.WithDeliveryObserver(app.Metrics))

	settings := notify.DefaultSettings()
	settings.ClinicName = cfg.ClinicName
	settings.ClinicEmail = cfg.ClinicEmail
	settings.ClinicPhone = cfg.ClinicPhone
	settings.CountryCode = cfg.CountryCode
	composer := notify.NewComposer(settings, app.Book.Catalog(), loc)

	var publisher services.Publisher
	if cfg.UsesAMQP() {
		broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		publisher = broker
		logger.Info("AMQP client initialized, notifications handled by clinic-notifier")
	} else {
		app.Worker, app.Mirror, err = NewNotifier(ctx, cfg, app.Ledger, res, app.Queue, logger, worker.WithSharedLedger())
		if err != nil {
			app.Close()
			return nil, err
		}
		publisher = worker.NewLoopback(app.Worker)
		logger.Info("AMQP disabled, notifications handled in-process")
	}

	app.Service = services.NewClinicService(app.Ledger, app.Book, composer, publisher, logger)
	return app, nil
}

// ReadyChecks returns the dependency probes for /readyz.
func (a *App) ReadyChecks() []apphttp.ReadyCheck {
	var checks []apphttp.ReadyCheck
	if a.Backend.Ping != nil {
		checks = append(checks, apphttp.ReadyCheck{Name: "storage", Check: a.Backend.Ping})
	}
	return checks
}

// Server builds the HTTP server over the app's components.
func (a *App) Server() *apphttp.Server {
	return apphttp.NewServer(":"+a.Config.Port, apphttp.Deps{
		Service:  a.Service,
		Reports:  a.Reports,
		Renderer: a.Renderer,
		Metrics:  a.Metrics,
		Queue:    a.Queue,
		Logger:   a.Logger,
		Checks:   a.ReadyChecks(),
	},
		apphttp.WithRateLimit(a.Config.RateLimit, a.Config.RateWindow),
		apphttp.WithTimeouts(a.Config.ReadTimeout, a.Config.WriteTimeout, 60*time.Second))
}

// Close stops scheduled reminders and releases storage and broker
// connections in reverse order of acquisition.
func (a *App) Close() error {
	if a.Worker != nil {
		if n := a.Worker.Stop(); n > 0 {
			a.Logger.Warn("Scheduled reminders dropped on shutdown", "count", n)
		}
	}
	if a.Service != nil {
		if err := a.Service.Close(); err != nil {
			a.Logger.Warn("Closing clinic service failed", log.FieldError, err.Error())
		}
	}
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}
