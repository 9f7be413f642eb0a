// Package main is the entry point for the Procura background worker.
// It relays outbox events, sweeps expired reservations and cleans up
// stale idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"procura/internal/domain/ledger"
	"procura/internal/domain/reservation"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/ledger_repo"
	"procura/internal/infrastructure/storage/postgres/reservation_repo"
	"procura/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting procura worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	ledgerService := ledger.NewService(ledger_repo.NewRepo(txManager))
	reservationService := reservation.NewService(
		reservation_repo.NewRepo(txManager),
		ledgerService,
		txManager,
	)

	relay := postgres.NewOutboxRelay(
		pool.Pool,
		getEnvInt("OUTBOX_BATCH_SIZE", 100),
		&logHandler{log: log.WithComponent("outbox")},
	)

	idempotencyStore := postgres.NewIdempotencyStore(
		txManager,
		getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	)

	worker := &Worker{
		relay:        relay,
		reservations: reservationService,
		idempotency:  idempotencyStore,
		pollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		log:          log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic background jobs.
type Worker struct {
	relay        *postgres.OutboxRelay
	reservations *reservation.Service
	idempotency  *postgres.IdempotencyStore
	pollInterval time.Duration
	log          *logger.Logger
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	outboxTicker := time.NewTicker(w.pollInterval)
	defer outboxTicker.Stop()

	expiryTicker := time.NewTicker(30 * time.Second)
	defer expiryTicker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-outboxTicker.C:
			w.processOutbox(ctx)
		case <-expiryTicker.C:
			w.releaseExpiredReservations(ctx)
		case <-cleanupTicker.C:
			w.moveFailedToDLQ(ctx)
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	processed, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox batch failed", "error", err)
		return
	}
	if processed > 0 {
		w.log.Debugw("processed outbox batch", "count", processed)
	}
}

func (w *Worker) releaseExpiredReservations(ctx context.Context) {
	released, err := w.reservations.ReleaseExpired(ctx, 100)
	if err != nil {
		w.log.Errorw("reservation expiry sweep failed", "error", err)
		return
	}
	if released > 0 {
		w.log.Infow("released expired reservations", "count", released)
	}
}

func (w *Worker) moveFailedToDLQ(ctx context.Context) {
	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("outbox DLQ sweep failed", "error", err)
		return
	}
	if moved > 0 {
		w.log.Warnw("moved outbox messages to DLQ", "count", moved)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	removed, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}

// logHandler delivers outbox events to the log. Swap in a broker-backed
// handler here when downstream consumers appear.
type logHandler struct {
	log *logger.Logger
}

func (h *logHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("event published",
		"id", msg.ID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType,
	)
	return nil
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
