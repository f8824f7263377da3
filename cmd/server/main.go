package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/cache"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/config"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/database"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/logging"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/metrics"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/middleware"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/payments"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/routes"
	"github.com/gideonjohnson/PrepCoach-sub004/internal/tracing"
	sessionws "github.com/gideonjohnson/PrepCoach-sub004/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	shutdownTracer, err := tracing.InitTracerProvider("prepcoach-api", cfg.JaegerEndpoint)
	if err != nil {
		return err
	}

	// 3. Connect to Database
	if cfg.DBUrl == "" {
		logger.Fatal().Msg("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}

	// 4. Cache, events, payments
	jobCache, closeCache := buildCache(ctx, cfg, logger)

	hub := sessionws.NewHub(logger)
	publishers := events.Multi{hub}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		publishers = append(publishers, kafkaPublisher)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		logger.Warn().Msg("stripe keys are not configured; refunds, payouts and webhooks will fail")
	}
	m := metrics.New()

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: !cfg.IsDevelopment(),
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(middleware.Metrics(m))

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	if err := routes.RegisterRoutes(app, cfg, routes.Dependencies{
		DB:        pool,
		Cache:     jobCache,
		Publisher: publishers,
		Hub:       hub,
		Gateway:   payments.NewStripeGateway(cfg.StripeSecretKey, nil),
		Verifier:  payments.NewStripeVerifier(cfg.StripeWebhookSecret),
		Metrics:   m,
		Logger:    logger,
	}); err != nil {
		return err
	}

	// 6. Start Server
	g, gctx := errgroup.WithContext(ctx)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// HTTP first so no request publishes into closed sinks.
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("fiber shutdown")
		}
		stopHub()
		if kafkaPublisher != nil {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error().Err(err).Msg("kafka writer close")
			}
		}
		closeCache()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown")
		}
		pool.Close()
		return nil
	})

	return g.Wait()
}

// buildCache prefers Redis and falls back to the in-process cache when it is not
// configured or not reachable at startup.
func buildCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(), func() {}
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory job cache")
		return cache.NewMemoryCache(), func() {}
	}
	return cache.NewRedisCache(client, "prepcoach:"), func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close")
		}
	}
}
