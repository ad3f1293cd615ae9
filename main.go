package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"plane-spot-system/config"
	"plane-spot-system/database"
	"plane-spot-system/handlers"
	"plane-spot-system/logger"
	"plane-spot-system/metrics"
	"plane-spot-system/middleware"
	"plane-spot-system/services"
	"plane-spot-system/utils"
	"plane-spot-system/workers"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Logger.Info().Msg("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	log := logger.WithComponent("main")

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- services ---
	userService := services.NewUserService(db)
	achievementService := services.NewAchievementService(db, userService)
	userService.Achievements = achievementService
	badgeService := services.NewBadgeService(db)
	walletService := services.NewWalletService(db)

	spotService := services.NewSpotService(db, userService, badgeService, walletService)
	spotService.Achievements = achievementService
	spotService.FollowerGrace = cfg.BatchFollowerGrace
	spotService.Geocoder = services.NewNominatimGeocoder(cfg.GeocoderURL, cfg.UpstreamTimeout)

	var batcher *services.LedgerBatcher
	if cfg.LedgerCommand != "" {
		ledger, err := services.NewExecLedger(cfg.LedgerCommand, cfg.LedgerTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid LEDGER_COMMAND")
		}
		batcher = services.NewLedgerBatcher(db, ledger, cfg.LedgerBatchWindow, cfg.LedgerBatchScope)
		if cfg.R2Enabled() {
			archive, err := utils.NewR2Archive(ctx, utils.R2Config{
				AccountID:       cfg.R2AccountID,
				AccessKeyID:     cfg.R2AccessKeyID,
				AccessKeySecret: cfg.R2AccessKeySecret,
				Bucket:          cfg.R2Bucket,
			})
			if err != nil {
				log.Fatal().Err(err).Msg("failed to initialize R2 client")
			}
			batcher.Archive = archive
		}
		spotService.Ledger = batcher
	} else {
		log.Warn().Msg("⚠️  LEDGER_COMMAND not set, spots will not be ledger-logged")
	}

	flightService := services.NewFlightService(
		services.NewFlightAPIClient(cfg.FlightAPIURL, cfg.FlightAPIKey, cfg.UpstreamTimeout),
		cfg.FlightSearchRadiusKm, cfg.FlightCacheTTL, cfg.FlightRatePerSec, cfg.UpstreamTimeout,
	)

	var verifier services.PaymentVerifier
	if cfg.PaymentAPIURL != "" {
		verifier = services.NewPaymentAPIClient(cfg.PaymentAPIURL, cfg.ServiceToken, cfg.UpstreamTimeout)
	}
	subscriptionService := services.NewSubscriptionService(db, verifier, walletService)

	scheduler, err := userService.StartResetScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start reset scheduler")
	}

	// --- workers ---
	if cfg.SyncServiceURL != "" {
		workers.NewUserSyncWorker(userService, cfg.SyncServiceURL, "/api/v1/public/profiles", cfg.ServiceToken).Start(ctx)
		go workers.PollWallets(ctx, workers.NewWalletSyncClient(walletService, cfg.SyncServiceURL, cfg.ServiceToken), 10*time.Second)
	} else {
		log.Warn().Msg("⚠️  SYNC_SERVICE_URL not set, user and wallet sync disabled")
	}

	// --- http ---
	app := fiber.New(fiber.Config{
		AppName:      "plane-spot-system",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())

	prom := fiberprometheus.New("plane-spot-system")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// 🔐 everything below /health and /metrics must come through the gateway
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	handlers.SetupSpotRoutes(app, spotService, flightService)
	handlers.SetupUserRoutes(app, handlers.UserDeps{
		Users:         userService,
		Badges:        badgeService,
		Achievements:  achievementService,
		Wallets:       walletService,
		Subscriptions: subscriptionService,
	})
	handlers.SetupAdminRoutes(app, userService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()
	log.Info().Str("port", cfg.Port).Strs("origins", cfg.AllowedOrigins).Msg("✅ Server running")

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	if batcher != nil {
		if err := batcher.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ledger batcher did not drain")
		}
	}
}
