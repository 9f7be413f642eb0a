package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/receiving"
	"procura/internal/infrastructure/http/v1/dto"
)

// ReceivingHandler handles HTTP requests for receiving documents.
type ReceivingHandler struct {
	*BaseHandler
	service *receiving.Service
}

// NewReceivingHandler creates a new receiving handler.
func NewReceivingHandler(base *BaseHandler, service *receiving.Service) *ReceivingHandler {
	return &ReceivingHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /document/receiving
func (h *ReceivingHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateReceivingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReceiving(doc))
}

// Get handles GET /document/receiving/:id
func (h *ReceivingHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromReceiving(doc))
}

// Update handles PUT /document/receiving/:id
//
// For a confirmed document this is a ledger-visible edit: the applied
// stock effect is reconciled to the new lines in the same transaction.
func (h *ReceivingHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateReceivingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(doc)

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReceiving(doc))
}

// Confirm handles POST /document/receiving/:id/confirm
func (h *ReceivingHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Confirm(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReceiving(doc))
}

// Delete handles DELETE /document/receiving/:id
func (h *ReceivingHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Copy handles POST /document/receiving/:id/copy - creates an unconfirmed
// copy of the document with fresh line IDs.
func (h *ReceivingHandler) Copy(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	source, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	copied := receiving.New(source.SupplierID, source.WarehouseID)
	copied.Date = time.Now().UTC()
	copied.OrderID = source.OrderID
	copied.Currency = source.Currency
	copied.Comment = source.Comment

	for _, line := range source.Lines {
		newLine := copied.AddLine(line.ProductID, line.Quantity, line.UnitCost)
		newLine.OrderLineID = line.OrderLineID
		newLine.LocationID = line.LocationID
		newLine.BatchInfo = line.BatchInfo
	}

	if err := h.service.Create(ctx, copied); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReceiving(copied))
}

// List handles GET /document/receiving - list with filtering.
func (h *ReceivingHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := receiving.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "-date")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if orderID := c.Query("orderId"); orderID != "" {
		if parsed, err := id.Parse(orderID); err == nil {
			filter.OrderID = parsed
		}
	}
	if supplierID := c.Query("supplierId"); supplierID != "" {
		if parsed, err := id.Parse(supplierID); err == nil {
			filter.SupplierID = parsed
		}
	}
	if warehouseID := c.Query("warehouseId"); warehouseID != "" {
		if parsed, err := id.Parse(warehouseID); err == nil {
			filter.WarehouseID = parsed
		}
	}
	if confirmed := c.Query("confirmed"); confirmed != "" {
		val := confirmed == "true"
		filter.Confirmed = &val
	}
	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}
	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.ReceivingResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromReceiving(doc)
	}

	c.JSON(http.StatusOK, dto.ReceivingListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers receiving routes.
func (h *ReceivingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/confirm", h.Confirm)
	rg.POST("/:id/copy", h.Copy)
}
