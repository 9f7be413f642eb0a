package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/domain/ledger"
	"procura/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service     *ledger.Service
	adjustments *ledger.AdjustmentService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service, adjustments *ledger.AdjustmentService) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		adjustments: adjustments,
	}
}

// GetBalances handles GET /stock/balances
func (h *StockHandler) GetBalances(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ledger.AggregateFilter{
		ExcludeZero: c.Query("excludeZero") != "false",
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	if whStr := c.Query("warehouseId"); whStr != "" {
		parsed, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouseId format"))
			return
		}
		filter.WarehouseID = parsed
	}
	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = parsed
	}

	if id.IsNil(filter.WarehouseID) && id.IsNil(filter.ProductID) {
		h.Error(c, apperror.NewValidation("warehouseId or productId is required"))
		return
	}

	aggregates, err := h.service.ListAggregates(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockBalanceResponse, len(aggregates))
	for i, a := range aggregates {
		items[i] = dto.FromStockAggregate(a)
	}

	c.JSON(http.StatusOK, dto.StockBalanceListResponse{Items: items})
}

// GetProductAvailability handles GET /stock/availability/:productId
func (h *StockHandler) GetProductAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	quantity, err := h.service.GetProductAvailability(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"productId": productID.String(),
		"available": quantity,
	})
}

// GetDocumentEntries handles GET /stock/entries - the full ledger trail of
// one document, original and compensating entries alike.
func (h *StockHandler) GetDocumentEntries(c *gin.Context) {
	ctx := c.Request.Context()

	docType := c.Query("documentType")
	docIDStr := c.Query("documentId")
	if docType == "" || docIDStr == "" {
		h.Error(c, apperror.NewValidation("documentType and documentId are required"))
		return
	}

	docID, err := id.Parse(docIDStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid documentId format"))
		return
	}

	entries, err := h.service.EntriesByDocument(ctx, entity.DocumentRef{Type: docType, ID: docID})
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = dto.FromLedgerEntry(e)
	}

	c.JSON(http.StatusOK, dto.LedgerEntryListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// GetTurnovers handles GET /stock/turnovers
func (h *StockHandler) GetTurnovers(c *gin.Context) {
	ctx := c.Request.Context()

	fromStr := c.Query("fromDate")
	toStr := c.Query("toDate")
	if fromStr == "" || toStr == "" {
		h.Error(c, apperror.NewValidation("fromDate and toDate are required"))
		return
	}

	fromDate, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
		return
	}
	toDate, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
		return
	}

	filter := ledger.TurnoverFilter{
		From: fromDate,
		To:   toDate,
	}

	if whStr := c.Query("warehouseId"); whStr != "" {
		if parsed, err := id.Parse(whStr); err == nil {
			filter.WarehouseID = parsed
		}
	}
	if pStr := c.Query("productId"); pStr != "" {
		if parsed, err := id.Parse(pStr); err == nil {
			filter.ProductID = parsed
		}
	}

	rows, err := h.service.GetTurnover(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.TurnoverRowResponse, len(rows))
	for i, r := range rows {
		items[i] = dto.FromTurnoverRow(r)
	}

	c.JSON(http.StatusOK, dto.TurnoverListResponse{
		From:  fromDate,
		To:    toDate,
		Items: items,
	})
}

// GetMovementHistory handles GET /stock/movements/:productId
func (h *StockHandler) GetMovementHistory(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	filter := ledger.EntryFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if whStr := c.Query("warehouseId"); whStr != "" {
		parsed, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouseId format"))
			return
		}
		filter.WarehouseID = parsed
	}
	if fromStr := c.Query("fromDate"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
			return
		}
		filter.From = parsed
	}
	if toStr := c.Query("toDate"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
			return
		}
		filter.To = parsed
	}

	entries, err := h.service.GetMovementHistory(ctx, productID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = dto.FromLedgerEntry(e)
	}

	c.JSON(http.StatusOK, dto.LedgerEntryListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// CreateAdjustment handles POST /stock/adjustments - manual corrections
// and opening balance loads.
func (h *StockHandler) CreateAdjustment(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StockAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entry, err := h.adjustments.Record(ctx, req.ToAdjustmentRequest())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromLedgerEntry(*entry))
}

// RegisterRoutes registers stock ledger routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balances", h.GetBalances)
	rg.GET("/entries", h.GetDocumentEntries)
	rg.GET("/movements/:productId", h.GetMovementHistory)
	rg.GET("/turnovers", h.GetTurnovers)
	rg.GET("/availability/:productId", h.GetProductAvailability)
	rg.POST("/adjustments", h.CreateAdjustment)
}
