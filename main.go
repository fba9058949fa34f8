package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"badge-progress-system/catalog"
	"badge-progress-system/config"
	"badge-progress-system/engine"
	"badge-progress-system/handlers"
	"badge-progress-system/logging"
	"badge-progress-system/middleware"
	"badge-progress-system/services"
	"badge-progress-system/store"
	"badge-progress-system/utils"
	"badge-progress-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("❌ failed to load configuration")
	}
	logging.Init(cfg.Logging.ToLogging())
	if err := cfg.RequireServer(); err != nil {
		logging.Fatal().Err(err).Msg("❌ configuration incomplete")
	}

	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("❌ failed to load badge catalog")
	}

	db, err := store.OpenPostgres(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("❌ database unavailable")
	}
	st := store.NewGormStore(db, store.WithRetries(cfg.Database.UpdateRetries),
		store.WithRunLease(cfg.Backfill.RunLease))

	progressService := services.NewProgressService(cat, st, engine.New())
	backfillService := services.NewBackfillService(progressService, cfg.Backfill.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := services.NewScheduler(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("❌ failed to create scheduler")
	}

	if cfg.Sync.Enabled {
		poller, err := workers.NewEventPollWorker(workers.EventPollWorkerConfig{
			BaseURL:         cfg.Sync.ServiceURL,
			EndpointPath:    cfg.Sync.EventsPath,
			ServiceToken:    cfg.SyncToken(),
			Interval:        cfg.Sync.Interval,
			BatchSize:       cfg.Sync.BatchSize,
			BreakerFailures: cfg.Sync.BreakerFailures,
			BreakerTimeout:  cfg.Sync.BreakerTimeout,
			HTTPClient:      utils.NewHTTPClient(cfg.Sync.Timeout),
		}, progressService, st)
		if err != nil {
			logging.Fatal().Err(err).Msg("❌ failed to create event poller")
		}
		poller.Start(ctx)
	}

	if cfg.Backfill.Enabled {
		objects, err := utils.NewObjectStore(ctx, cfg.R2.ToObjectStore())
		if err != nil {
			logging.Fatal().Err(err).Msg("❌ failed to initialize R2 client")
		}
		backfillWorker := workers.NewBackfillWorker(objects, st, backfillService, cfg.Backfill.Prefix)
		if err := backfillWorker.Schedule(scheduler, cfg.Backfill.Interval); err != nil {
			logging.Fatal().Err(err).Msg("❌ failed to schedule backfill scan")
		}
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestIDMiddleware())

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.Gateway.Token))

	allowedOrigins := strings.Join(cfg.Server.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  "GET,POST,OPTIONS,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400,
	}))

	handlers.SetupMetricsRoute(app)
	handlers.SetupBadgeRoutes(app, cat, progressService)
	handlers.SetupAdminRoutes(app, progressService, backfillService, cfg.Gateway.AdminRole)

	go func() {
		if err := app.Listen(cfg.Server.ListenAddr); err != nil {
			logging.Error().Err(err).Msg("server error")
		}
	}()

	logging.Info().
		Str("addr", cfg.Server.ListenAddr).
		Int("badges", cat.Len()).
		Bool("event_poller", cfg.Sync.Enabled).
		Bool("backfill_scan", cfg.Backfill.Enabled).
		Str("cors_origins", allowedOrigins).
		Msg("✅ badge progress service running")

	<-ctx.Done()
	logging.Info().Msg("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logging.Error().Err(err).Msg("server shutdown failed")
	}
	if err := scheduler.Shutdown(); err != nil {
		logging.Error().Err(err).Msg("scheduler shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
