package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/purchase_return"
	"procura/internal/infrastructure/http/v1/dto"
)

// PurchaseReturnHandler handles HTTP requests for purchase return documents.
type PurchaseReturnHandler struct {
	*BaseHandler
	service *purchase_return.Service
}

// NewPurchaseReturnHandler creates a new purchase return handler.
func NewPurchaseReturnHandler(base *BaseHandler, service *purchase_return.Service) *PurchaseReturnHandler {
	return &PurchaseReturnHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /document/purchase-return
func (h *PurchaseReturnHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePurchaseReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromPurchaseReturn(doc))
}

// Get handles GET /document/purchase-return/:id
func (h *PurchaseReturnHandler) Get(c *gin.Context) {
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

	c.JSON(http.StatusOK, dto.FromPurchaseReturn(doc))
}

// Update handles PUT /document/purchase-return/:id
func (h *PurchaseReturnHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdatePurchaseReturnRequest
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

	h.OK(c, dto.FromPurchaseReturn(doc))
}

// Confirm handles POST /document/purchase-return/:id/confirm
func (h *PurchaseReturnHandler) Confirm(c *gin.Context) {
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

	h.OK(c, dto.FromPurchaseReturn(doc))
}

// Delete handles DELETE /document/purchase-return/:id
func (h *PurchaseReturnHandler) Delete(c *gin.Context) {
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

// List handles GET /document/purchase-return - list with filtering.
func (h *PurchaseReturnHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := purchase_return.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "-date")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if receivingID := c.Query("receivingId"); receivingID != "" {
		if parsed, err := id.Parse(receivingID); err == nil {
			filter.ReceivingID = parsed
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

	items := make([]*dto.PurchaseReturnResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromPurchaseReturn(doc)
	}

	c.JSON(http.StatusOK, dto.PurchaseReturnListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers purchase return routes.
func (h *PurchaseReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/confirm", h.Confirm)
}
