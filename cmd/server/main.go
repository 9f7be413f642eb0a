// Package main is the entry point for the Procura API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/purchase_return"
	"procura/internal/domain/documents/receiving"
	"procura/internal/domain/ledger"
	"procura/internal/domain/reconcile"
	"procura/internal/domain/reservation"
	v1 "procura/internal/infrastructure/http/v1"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/document_repo"
	"procura/internal/infrastructure/storage/postgres/ledger_repo"
	"procura/internal/infrastructure/storage/postgres/reservation_repo"
	"procura/pkg/logger"
	"procura/pkg/numerator"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting procura server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Infrastructure services ---
	outbox := postgres.NewOutboxPublisher(txManager)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	numeratorService := numerator.New(pool)

	// --- Stock ledger ---
	ledgerService := ledger.NewService(ledger_repo.NewRepo(txManager))
	engine := reconcile.NewEngine(ledgerService)
	adjustmentService := ledger.NewAdjustmentService(ledgerService, numeratorService, txManager)

	// --- Reservations ---
	reservationService := reservation.NewService(
		reservation_repo.NewRepo(txManager),
		ledgerService,
		txManager,
	)

	// --- Documents ---
	// Receivings feed received quantities back into orders; returns feed
	// returned quantities back into receivings. The repos are the sum
	// sources, the services are the sync targets.
	orderRepo := document_repo.NewPurchaseOrderRepo(txManager)
	receivingRepo := document_repo.NewReceivingRepo(txManager)
	returnRepo := document_repo.NewPurchaseReturnRepo(txManager)

	orderService := purchase_order.NewService(
		orderRepo,
		receivingRepo,
		numeratorService,
		txManager,
		outbox,
	)

	receivingService := receiving.NewService(
		receivingRepo,
		engine,
		returnRepo,
		orderService,
		numeratorService,
		txManager,
		outbox,
		auditService,
	)

	returnService := purchase_return.NewService(
		returnRepo,
		engine,
		receivingService,
		numeratorService,
		txManager,
		outbox,
		auditService,
	)

	// --- Idempotency ---
	var idempotencyStore *postgres.IdempotencyStore
	if getEnv("IDEMPOTENCY_ENABLED", "true") == "true" {
		ttl := getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)
		idempotencyStore = postgres.NewIdempotencyStore(txManager, ttl)
		log.Infow("idempotency protection enabled", "ttl", ttl)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		Idempotency:  idempotencyStore,
		Orders:       orderService,
		Receivings:   receivingService,
		Returns:      returnService,
		Stock:        ledgerService,
		Adjustments:  adjustmentService,
		Reservations: reservationService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
