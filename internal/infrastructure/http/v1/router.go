// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/purchase_return"
	"procura/internal/domain/documents/receiving"
	"procura/internal/domain/ledger"
	"procura/internal/domain/reservation"
	"procura/internal/infrastructure/http/v1/handlers"
	"procura/internal/infrastructure/http/v1/middleware"
	"procura/internal/infrastructure/storage/postgres"
	"procura/pkg/logger"
)

// RouterConfig holds the wired services the API exposes.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// Idempotency enables replay protection on mutating endpoints when set
	Idempotency *postgres.IdempotencyStore

	Orders       *purchase_order.Service
	Receivings   *receiving.Service
	Returns      *purchase_return.Service
	Stock        *ledger.Service
	Adjustments  *ledger.AdjustmentService
	Reservations *reservation.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		if cfg.Idempotency != nil {
			v1.Use(middleware.Idempotency(cfg.Idempotency))
		}

		baseHandler := handlers.NewBaseHandler()
		docs := v1.Group("/document")

		// --- PURCHASE ORDERS ---
		{
			handler := handlers.NewPurchaseOrderHandler(baseHandler, cfg.Orders)
			handler.RegisterRoutes(docs.Group("/purchase-order"))
		}

		// --- RECEIVINGS ---
		{
			handler := handlers.NewReceivingHandler(baseHandler, cfg.Receivings)
			handler.RegisterRoutes(docs.Group("/receiving"))
		}

		// --- PURCHASE RETURNS ---
		{
			handler := handlers.NewPurchaseReturnHandler(baseHandler, cfg.Returns)
			handler.RegisterRoutes(docs.Group("/purchase-return"))
		}

		// --- STOCK LEDGER ---
		{
			handler := handlers.NewStockHandler(baseHandler, cfg.Stock, cfg.Adjustments)
			handler.RegisterRoutes(v1.Group("/stock"))
		}

		// --- RESERVATIONS ---
		{
			handler := handlers.NewReservationHandler(baseHandler, cfg.Reservations)
			handler.RegisterRoutes(v1.Group("/reservations"))
		}
	}

	return router
}
