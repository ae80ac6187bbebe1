package main

import (
	"context"
	"database/sql"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/internal/handler"
	"github.com/SecuShare/filevault/internal/mail"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/ratelimit"
	"github.com/SecuShare/filevault/internal/repository"
	"github.com/SecuShare/filevault/internal/scheduler"
	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/database"
	"github.com/SecuShare/filevault/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Output: os.Stdout,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}

	logger.Info().
		Str("bind_address", cfg.Server.BindAddress).
		Str("port", cfg.Server.Port).
		Str("rate_limit_backend", cfg.RateLimit.Backend).
		Str("timezone", cfg.Timezone).
		Msg("Starting filevault server")

	// Initialize database
	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := database.InitSchema(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize schema")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	linkRepo := repository.NewShortLinkRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Rate limiting
	store, redisClient := buildCounterStore(cfg, db)
	limiter := ratelimit.NewLimiter(store)

	// Quotas
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}
	mailer := mail.NewSMTPMailer(cfg.SMTP, cfg.IsProduction)
	notifier := quota.NewBreachNotifier(quota.NotifierConfig{
		Disabled: cfg.Notify.Disabled,
		Workers:  cfg.Notify.Workers,
	}, userRepo, mailer)
	resolver := quota.NewResolver(userRepo, settingsRepo)
	accountant := quota.NewAccountant(usageRepo, quota.WithLocation(loc))
	policy := quota.NewPolicy(resolver, accountant, notifier)

	// Initialize services
	authSvc := service.NewAuthService(userRepo, cfg)
	fileSvc := service.NewFileService(fileRepo, settingsRepo, policy, cfg.Storage.Path)
	linkSvc := service.NewShortLinkService(linkRepo, policy)
	accountSvc := service.NewAccountService(userRepo, resolver, accountant, loc)
	adminSvc := service.NewAdminService(settingsRepo, userRepo)

	// Background maintenance
	jobs := scheduler.New(
		scheduler.Job{Name: "rate_limit_sweep", Schedule: cfg.Maintenance.SweepSchedule, Run: limiter.Sweep},
		scheduler.Job{Name: "expired_link_cleanup", Schedule: cfg.Maintenance.CleanupSchedule, Run: linkSvc.DeleteExpired},
	)
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	if err := jobs.Start(jobsCtx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start maintenance scheduler")
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:               100 * 1024 * 1024, // 100MB limit
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            30 * time.Second,
		IdleTimeout:             60 * time.Second,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.Server.TrustedProxies,
		EnableIPValidation:      true,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))
	app.Use(handler.SecurityHeadersMiddleware())
	app.Use(handler.RequestIDMiddleware())
	app.Use(handler.MetricsMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset, Retry-After, X-Request-ID",
		MaxAge:        3600,
	}))
	app.Use(logger.Middleware())

	handler.RegisterRoutes(app, handler.Routes{
		Auth:      authSvc,
		Limiter:   limiter,
		RateLimit: cfg.RateLimit,
		Files:     handler.NewFileHandler(fileSvc),
		Links:     handler.NewLinkHandler(linkSvc),
		Account:   handler.NewAccountHandler(accountSvc),
		Admin:     handler.NewAdminHandler(adminSvc, jobs),
	})

	healthHandler := handler.NewHealthHandler(db, cfg.Storage.Path)
	if redisClient != nil {
		healthHandler.AddCheck("rate_limit_store", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	app.Get("/health", healthHandler.Liveness)
	app.Get("/health/ready", healthHandler.Readiness)

	metricsHandler := handler.NewMetricsHandler()
	if cfg.Observability.MetricsEnabled {
		if cfg.IsProduction {
			app.Get("/metrics", handler.BearerTokenMiddleware(cfg.Observability.MetricsToken), metricsHandler.Handler())
		} else {
			app.Get("/metrics", metricsHandler.Handler())
		}
	} else {
		logger.Info().Msg("Metrics endpoint disabled")
	}

	go func() {
		addr := net.JoinHostPort(cfg.Server.BindAddress, cfg.Server.Port)
		logger.Info().
			Str("address", addr).
			Bool("metrics_enabled", cfg.Observability.MetricsEnabled).
			Msg("HTTP server listening")
		if err := app.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info().Msg("Stopping background jobs...")
	stopJobs()
	jobs.Stop()

	logger.Info().Msg("Shutting down HTTP server...")
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	// Drain queued breach notifications after requests stop producing them.
	notifier.Stop()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing redis client")
		}
	}

	logger.Info().Msg("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing database")
	}

	logger.Info().Msg("Server stopped gracefully")
}

// buildCounterStore picks the rate limit backend. A Redis backend that
// cannot be reached at startup falls back to the shared SQL table.
func buildCounterStore(cfg *config.Config, db *sql.DB) (ratelimit.Store, *redis.Client) {
	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendMemory:
		return ratelimit.NewMemoryStore(), nil
	case config.RateLimitBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := ratelimit.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Redis unavailable; using SQL rate limit counters")
			return ratelimit.NewSQLStore(db), nil
		}
		return ratelimit.NewRedisStore(client, ""), client
	default:
		return ratelimit.NewSQLStore(db), nil
	}
}
