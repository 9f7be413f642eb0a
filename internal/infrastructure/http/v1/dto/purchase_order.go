package dto

import (
	"time"

	"procura/internal/core/types"
	"procura/internal/domain/documents/purchase_order"
)

// --- Request DTOs ---

// CreatePurchaseOrderRequest represents a request to create a purchase order.
type CreatePurchaseOrderRequest struct {
	Number      string                     `json:"number,omitempty"`
	Date        time.Time                  `json:"date" binding:"required"`
	SupplierID  string                     `json:"supplierId" binding:"required"`
	WarehouseID string                     `json:"warehouseId" binding:"required"`
	Currency    string                     `json:"currency,omitempty"`
	ExpectedAt  *time.Time                 `json:"expectedAt,omitempty"`
	Comment     string                     `json:"comment,omitempty"`
	Lines       []PurchaseOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PurchaseOrderLineRequest represents a line in create/update request.
type PurchaseOrderLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required,gt=0"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// ToEntity converts request to domain entity.
func (r *CreatePurchaseOrderRequest) ToEntity() *purchase_order.PurchaseOrder {
	doc := purchase_order.New(parseID(r.SupplierID), parseID(r.WarehouseID))
	doc.Number = r.Number
	doc.Date = r.Date
	doc.ExpectedAt = r.ExpectedAt
	doc.Comment = r.Comment

	if r.Currency != "" {
		doc.Currency = r.Currency
	}

	for _, line := range r.Lines {
		doc.AddLine(parseID(line.ProductID), line.Quantity, line.UnitPrice)
	}

	return doc
}

// UpdatePurchaseOrderRequest represents a request to update a purchase order.
type UpdatePurchaseOrderRequest struct {
	Date        *time.Time                 `json:"date,omitempty"`
	SupplierID  *string                    `json:"supplierId,omitempty"`
	WarehouseID *string                    `json:"warehouseId,omitempty"`
	Currency    *string                    `json:"currency,omitempty"`
	ExpectedAt  *time.Time                 `json:"expectedAt,omitempty"`
	Comment     *string                    `json:"comment,omitempty"`
	Lines       []PurchaseOrderLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdatePurchaseOrderRequest) ApplyTo(doc *purchase_order.PurchaseOrder) {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.SupplierID != nil {
		doc.SupplierID = parseID(*r.SupplierID)
	}
	if r.WarehouseID != nil {
		doc.WarehouseID = parseID(*r.WarehouseID)
	}
	if r.Currency != nil {
		doc.Currency = *r.Currency
	}
	if r.ExpectedAt != nil {
		doc.ExpectedAt = r.ExpectedAt
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = make([]purchase_order.Line, 0, len(r.Lines))
		for _, line := range r.Lines {
			doc.AddLine(parseID(line.ProductID), line.Quantity, line.UnitPrice)
		}
	}
}

// ApprovePurchaseOrderRequest carries the approver identity.
type ApprovePurchaseOrderRequest struct {
	ApprovedBy string `json:"approvedBy,omitempty"`
}

// RejectPurchaseOrderRequest carries the rejection reason.
type RejectPurchaseOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// --- Response DTOs ---

// PurchaseOrderResponse represents a purchase order in API responses.
type PurchaseOrderResponse struct {
	ID              string                      `json:"id"`
	Number          string                      `json:"number"`
	Date            time.Time                   `json:"date"`
	Status          string                      `json:"status"`
	ApprovedBy      string                      `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time                  `json:"approvedAt,omitempty"`
	RejectionReason string                      `json:"rejectionReason,omitempty"`
	SupplierID      string                      `json:"supplierId"`
	WarehouseID     string                      `json:"warehouseId"`
	Currency        string                      `json:"currency"`
	ExpectedAt      *time.Time                  `json:"expectedAt,omitempty"`
	TotalQuantity   types.Quantity              `json:"totalQuantity"`
	TotalAmount     types.Money                 `json:"totalAmount"`
	Comment         string                      `json:"comment,omitempty"`
	Lines           []PurchaseOrderLineResponse `json:"lines,omitempty"`
	DeletionMark    bool                        `json:"deletionMark,omitempty"`
	Version         int                         `json:"version"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}

// PurchaseOrderLineResponse represents a line in API responses.
type PurchaseOrderLineResponse struct {
	LineID           string         `json:"lineId"`
	LineNo           int            `json:"lineNo"`
	ProductID        string         `json:"productId"`
	Quantity         types.Quantity `json:"quantity"`
	UnitPrice        types.Money    `json:"unitPrice"`
	Amount           types.Money    `json:"amount"`
	ReceivedQuantity types.Quantity `json:"receivedQuantity"`
}

// FromPurchaseOrder converts domain entity to response DTO.
func FromPurchaseOrder(doc *purchase_order.PurchaseOrder) *PurchaseOrderResponse {
	resp := &PurchaseOrderResponse{
		ID:              doc.ID.String(),
		Number:          doc.Number,
		Date:            doc.Date,
		Status:          string(doc.Status),
		ApprovedBy:      doc.ApprovedBy,
		ApprovedAt:      doc.ApprovedAt,
		RejectionReason: doc.RejectionReason,
		SupplierID:      doc.SupplierID.String(),
		WarehouseID:     doc.WarehouseID.String(),
		Currency:        doc.Currency,
		ExpectedAt:      doc.ExpectedAt,
		TotalQuantity:   doc.TotalQuantity,
		TotalAmount:     doc.TotalAmount,
		Comment:         doc.Comment,
		DeletionMark:    doc.DeletionMark,
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}

	resp.Lines = make([]PurchaseOrderLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		resp.Lines[i] = PurchaseOrderLineResponse{
			LineID:           line.LineID.String(),
			LineNo:           line.LineNo,
			ProductID:        line.ProductID.String(),
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPrice,
			Amount:           line.Amount,
			ReceivedQuantity: line.ReceivedQuantity,
		}
	}

	return resp
}

// PurchaseOrderListResponse represents a list of purchase orders.
type PurchaseOrderListResponse struct {
	Items      []*PurchaseOrderResponse `json:"items"`
	TotalCount int                      `json:"totalCount"`
	Limit      int                      `json:"limit"`
	Offset     int                      `json:"offset"`
}
