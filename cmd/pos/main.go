package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sabyrkhan/cafe-pos/internal/realtime"
	"github.com/sabyrkhan/cafe-pos/internal/repository"
	"github.com/sabyrkhan/cafe-pos/internal/service"
	"github.com/sabyrkhan/cafe-pos/internal/transport/http"
	"github.com/sabyrkhan/cafe-pos/internal/transport/http/handler"
	kafkaTransport "github.com/sabyrkhan/cafe-pos/internal/transport/kafka"
	"github.com/sabyrkhan/cafe-pos/pkg/config"
	"github.com/sabyrkhan/cafe-pos/pkg/db"
	"github.com/sabyrkhan/cafe-pos/pkg/kafka"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	outboxRepository "github.com/sabyrkhan/cafe-pos/pkg/outbox/repository"
	"github.com/sabyrkhan/cafe-pos/pkg/outbox/worker"
	"github.com/sabyrkhan/cafe-pos/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "cafe-pos")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	loggerCfg := config.LoggerConfig{
		Level: utils.ParseWithFallback("LOG_LEVEL", "info"),
		Env:   cfg.Env,
	}
	logger, err := config.NewLogger(loggerCfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("error syncing logger: %v", err)
		}
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("error closing redis client: %v", err)
		}
	}()

	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, outboxRepo, cfg.Kafka.OrderTopic, logger)
	catalogRepo := repository.NewCatalogRepository(pool, logger)
	loyaltyRepo := repository.NewLoyaltyRepository(pool, logger)
	shortLinkRepo := repository.NewShortLinkRepository(pool, logger)
	auditRepo := repository.NewAuditRepository(pool, logger)

	orderService := service.NewOrderService(orderRepo, catalogRepo, loyaltyRepo, auditRepo, logger)
	salesService := service.NewCachedSalesService(
		service.NewSalesService(orderRepo, logger),
		redisClient,
		cfg.Dashboard.CacheTTL,
		logger,
	)
	shortLinkService := service.NewShortLinkService(shortLinkRepo, loyaltyRepo, logger)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("error closing kafka producer: %v", err)
		}
	}()

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	hub := realtime.NewHub(logger)

	invalidator, ok := salesService.(service.CacheInvalidator)
	if !ok {
		log.Fatalf("sales service does not support cache invalidation")
	}

	consumer := kafkaTransport.NewConsumer(
		hub,
		invalidator,
		cfg.Kafka.GroupPrefix+"-dashboard",
		cfg.Kafka.OrderTopic,
		logger,
	)
	go consumer.Start(ctx, cfg.Kafka.Brokers)

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})
	app.Use(otelfiber.Middleware())

	handlers := &http.Handlers{
		Order:     handler.NewOrderHandler(orderService, logger),
		Dashboard: handler.NewDashboardHandler(salesService, logger),
		ShortLink: handler.NewShortLinkHandler(shortLinkService, cfg.Loyalty.LinkBase, logger),
		WS:        handler.NewWSHandler(hub, logger),
	}

	http.RegisterRoutes(app, handlers, cfg.Auth.JWTSecret)

	logger.Info("POS service started", zap.String("port", cfg.HTTP.Port))

	go func() {
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down POS service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(
			shutdownCtx,
			logger,
			"Failed to shut down telemetry",
			zap.Error(err),
		)
	}
}
