package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"affiliate-engine/cache"
	"affiliate-engine/config"
	"affiliate-engine/handlers"
	"affiliate-engine/logger"
	"affiliate-engine/middleware"
	"affiliate-engine/repository"
	"affiliate-engine/services"
	"affiliate-engine/utils"
	"affiliate-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, loadedDotenv := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if !loadedDotenv {
		log.Warn("no .env file found, reading environment variables directly")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := repository.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	store := repository.NewGormStore(db)

	deps := services.Dependencies{
		Store:             store,
		Cipher:            utils.NewFieldCipher(cfg.EncryptionSalt),
		Logger:            log,
		CacheTTL:          cfg.CacheTTL,
		SessionTTL:        cfg.SessionTTL,
		AdminReferralCode: cfg.AdminReferralCode,
	}

	if cfg.RedisURL != "" {
		rc, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, metrics cache disabled")
		} else {
			defer rc.Close()
			deps.Cache = rc
		}
	}

	if cfg.ExportEnabled() {
		uploader, err := utils.NewR2Uploader(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize R2 client")
		}
		deps.Uploader = uploader
	}

	svc := services.NewAffiliateService(deps)

	if cfg.AdminReferralCode != "" && cfg.AdminAddress != "" {
		if _, err := svc.EnsureAdminReferralCode(ctx, cfg.AdminAddress); err != nil {
			log.WithError(err).Warn("failed to ensure admin referral code")
		}
	}

	sched, err := svc.StartHousekeeping(cfg.HousekeepingInterval)
	if err != nil {
		log.WithError(err).Fatal("failed to start housekeeping scheduler")
	}

	if cfg.ProfileSyncURL != "" {
		workers.NewProfileSyncWorker(store, cfg.ProfileSyncURL, cfg.ServiceToken, cfg.ProfileSyncInterval, log).Start(ctx)
	} else {
		log.Info("PROFILE_SYNC_URL not set, profile sync disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      "affiliate-engine",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())

	// only gateway requests are allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token, X-Wallet-Address, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupAffiliateRoutes(app, svc, log)
	handlers.SetupReferralRoutes(app, svc, log)
	handlers.SetupAdminRoutes(app, svc, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	log.WithField("port", cfg.Port).
		WithField("cache", deps.Cache != nil).
		WithField("export", deps.Uploader != nil).
		Info("affiliate service running")

	<-ctx.Done()
	log.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := sched.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
