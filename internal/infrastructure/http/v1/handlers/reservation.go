package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/domain/reservation"
	"procura/internal/infrastructure/http/v1/dto"
)

// ReservationHandler handles HTTP requests for stock reservations.
type ReservationHandler struct {
	*BaseHandler
	service *reservation.Service
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(base *BaseHandler, service *reservation.Service) *ReservationHandler {
	return &ReservationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Reserve(ctx, req.ToReserveRequest())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReservation(*res))
}

// Get handles GET /reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	resID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	res, err := h.service.Get(ctx, resID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromReservation(res))
}

// Release handles POST /reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	ctx := c.Request.Context()

	resID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Release(ctx, resID); err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Get(ctx, resID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReservation(res))
}

// ReleaseByReference handles POST /reservations/release - full or partial
// release of what a consumer reference holds on a stock key.
func (h *ReservationHandler) ReleaseByReference(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReleaseReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	released, err := h.service.ReleaseByReference(ctx, req.ToReleaseRequest())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ReleaseReservationResponse{Released: released})
}

// ReleaseExpired handles POST /reservations/release-expired - explicit
// expiry sweep, normally driven by the worker's scheduler.
func (h *ReservationHandler) ReleaseExpired(c *gin.Context) {
	ctx := c.Request.Context()

	limit := h.ParseIntQuery(c, "limit", 100)

	released, err := h.service.ReleaseExpired(ctx, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ReleaseExpiredResponse{Released: released})
}

// ListActive handles GET /reservations - active reservations for a stock key.
func (h *ReservationHandler) ListActive(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}
	warehouseID, err := id.Parse(c.Query("warehouseId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	key := entity.StockKey{ProductID: productID, WarehouseID: warehouseID}
	if locStr := c.Query("locationId"); locStr != "" {
		parsed, err := id.Parse(locStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId format"))
			return
		}
		key.LocationID = parsed
	}

	reservations, err := h.service.ListActiveByKey(ctx, key)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ReservationResponse, len(reservations))
	for i, res := range reservations {
		items[i] = dto.FromReservation(res)
	}

	c.JSON(http.StatusOK, dto.ReservationListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Available handles GET /reservations/available - unreserved quantity for
// a stock key.
func (h *ReservationHandler) Available(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}
	warehouseID, err := id.Parse(c.Query("warehouseId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	key := entity.StockKey{ProductID: productID, WarehouseID: warehouseID}
	if locStr := c.Query("locationId"); locStr != "" {
		parsed, err := id.Parse(locStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId format"))
			return
		}
		key.LocationID = parsed
	}

	available, err := h.service.Available(ctx, key)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"productId":   key.ProductID.String(),
		"warehouseId": key.WarehouseID.String(),
		"available":   available,
	})
}

// RegisterRoutes registers reservation routes.
func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListActive)
	rg.POST("", h.Create)
	rg.GET("/available", h.Available)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/release", h.Release)
	rg.POST("/release", h.ReleaseByReference)
	rg.POST("/release-expired", h.ReleaseExpired)
}
