package main

import (
	"context"
	"io/fs"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	paygate "github.com/set-night/paygate"
	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/handler"
	"github.com/set-night/paygate/internal/middleware"
	"github.com/set-night/paygate/internal/repository"
	"github.com/set-night/paygate/internal/repository/sqlc"
	"github.com/set-night/paygate/internal/scheduler"
	"github.com/set-night/paygate/internal/service"
	"github.com/set-night/paygate/internal/telegram"
	"github.com/set-night/paygate/internal/webhook"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		return run(ctx, lg, m, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *config.Config) error {
	// Database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	migrationsFS, err := fs.Sub(paygate.MigrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "load embedded migrations")
	}
	if err := repository.RunMigrations(lg, cfg.DatabaseURL, migrationsFS); err != nil {
		return errors.Wrap(err, "migrate")
	}

	store := repository.NewOrderRepository(pool, sqlc.New(pool))

	// Bot
	limiter := middleware.NewLimiter(config.BotRateEvery, config.BotRateBurst)
	b, err := bot.New(cfg.BotToken,
		bot.WithMiddlewares(
			middleware.Recover(lg),
			middleware.Logging(lg),
			middleware.RateLimit(limiter, lg),
			middleware.SubscriberLoader(cfg),
		),
		bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}),
		bot.WithErrorsHandler(func(err error) {
			lg.Warn("Bot error", zap.Error(err))
		}),
	)
	if err != nil {
		return errors.Wrap(err, "create bot")
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return errors.Wrap(err, "get bot info")
	}
	lg.Info("Bot info retrieved", zap.Int64("id", me.ID), zap.String("username", me.Username))

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			return errors.Wrap(err, "drop pending updates")
		}
	}

	// Services
	access := telegram.NewChannelAccess(b, cfg.ChannelID)
	sender := telegram.NewSender(b)
	events := telegram.NewEventLogger(b, cfg, lg)

	guard := service.NewOrderGuard()
	dispatcher, err := service.NewDispatcher(store, access, sender, events, service.DispatcherOptions{
		Workers:    cfg.NotifyWorkers,
		QueueSize:  cfg.NotifyQueueSize,
		StuckAfter: cfg.NotifyStuckAfter,
		Guard:      guard,
	}, lg, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}
	payments, err := service.NewPaymentService(store, cfg.WebhookSecret, dispatcher, events, lg, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create payment service")
	}
	reconciler, err := service.NewReconciler(store, access, sender, events, guard, lg, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create reconciler")
	}
	orders := service.NewOrderService(store, cfg, lg)

	handler.New(handler.Deps{
		Bot:    b,
		Cfg:    cfg,
		Orders: orders,
		Logger: lg,
	}).Register()

	// HTTP
	server, err := webhook.New(webhook.Deps{
		Payments: payments,
		Orders:   orders,
		DB:       pool,
		Logger:   lg,
		Meter:    m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create http server")
	}

	// Background jobs
	sched := scheduler.New(lg)
	if err := sched.Every("reconcile", cfg.ReconcileInterval, config.SweepTimeout, func(ctx context.Context) error {
		_, err := reconciler.Sweep(ctx, time.Now().UTC())
		return err
	}); err != nil {
		return err
	}
	if err := sched.Every("backfill", cfg.BackfillInterval, cfg.BackfillInterval, func(ctx context.Context) error {
		_, err := dispatcher.Backfill(ctx, time.Now().UTC())
		return err
	}); err != nil {
		return err
	}
	if err := sched.Every("prune-limiter", 10*time.Minute, 0, func(context.Context) error {
		limiter.Prune(time.Now(), 10*time.Minute)
		return nil
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Starting bot", zap.String("username", me.Username))
		b.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.HTTPAddr)
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	lg.Info("Stopped gracefully")
	return nil
}
