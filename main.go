package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-paycom/internal/auth"
	"ms-paycom/internal/config"
	"ms-paycom/internal/database/migrations"
	"ms-paycom/internal/kafka"
	"ms-paycom/internal/logger"
	"ms-paycom/internal/paycom"
	"ms-paycom/internal/payment"
	"ms-paycom/internal/payment/api"
	paymentredis "ms-paycom/internal/payment/redis"
	"ms-paycom/internal/payment/storage"
	"ms-paycom/internal/utils"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Paycom Gateway Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("APP", "Verifying database connections")
	bunDB, err := storage.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	store := storage.NewBunStore(bunDB, logger)
	defer store.Close()

	if cfg.Migrations.AutoMigrate {
		runner := migrations.NewRunner(bunDB.DB, cfg.Migrations, logger)
		if err := runner.MigrateUp(); err != nil {
			logger.Fatal("MIGRATE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	defer redisClient.Close()

	locker := paymentredis.NewLocker(redisClient, cfg.Redis.LockTTL, logger)
	locker.WatchExpiredLocks(ctx, func(paymentID string) {
		logger.LogPayment("LOCK_EXPIRED", paymentID, "operation outlived the lock TTL, check the payment state against the gateway")
	})

	client := paycom.NewClient(paycom.ClientConfig{URL: cfg.Gateway.URL, Timeout: cfg.Gateway.Timeout}, logger)
	logger.Info("GATEWAY", fmt.Sprintf("Paycom client posting to %s", client.URL()))
	creds := paycom.Credentials{
		Username:    cfg.Gateway.Username,
		Key:         cfg.Gateway.Key,
		KeyID:       cfg.Gateway.KeyID,
		ProcessorID: cfg.Gateway.ProcessorID,
	}
	clock := utils.SystemClock{}
	machine := payment.NewMachine(client, store, clock, creds, logger)

	var publisher payment.EventPublisher
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.PaymentEvents, cfg.Kafka.Topics.PaymentCommands}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentEvents, logger)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")

		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentCommands, cfg.Kafka.GroupID, logger)
		defer consumer.Close()
	} else {
		logger.Warn("KAFKA", "Kafka disabled, payment events will not be published")
	}

	service := payment.NewService(store, machine, locker, publisher, clock, cfg.Gateway.DefaultCurrency, logger)
	if consumer != nil {
		go consumer.Start(ctx, service)
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Failed to set up token verification: %v", err))
	}

	handler := api.NewHandler(service, store, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", handler.HealthCheck)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		logger.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api", handler.RegisterRoutes)
		logger.Info("ROUTER", "Payment routes registered under /api/payments")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Paycom Gateway Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Paycom Gateway Service shutdown complete")
	}
}
