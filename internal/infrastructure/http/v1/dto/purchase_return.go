package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/documents/purchase_return"
)

// --- Request DTOs ---

// CreatePurchaseReturnRequest represents a request to create a purchase return.
type CreatePurchaseReturnRequest struct {
	Number      string                      `json:"number,omitempty"`
	Date        time.Time                   `json:"date" binding:"required"`
	ReceivingID string                      `json:"receivingId" binding:"required"`
	SupplierID  string                      `json:"supplierId" binding:"required"`
	WarehouseID string                      `json:"warehouseId" binding:"required"`
	Reason      string                      `json:"reason,omitempty"`
	Comment     string                      `json:"comment,omitempty"`
	Lines       []PurchaseReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PurchaseReturnLineRequest represents a line in create/update request.
type PurchaseReturnLineRequest struct {
	ReceivingLineID string         `json:"receivingLineId" binding:"required"`
	ProductID       string         `json:"productId" binding:"required"`
	LocationID      string         `json:"locationId,omitempty"`
	Quantity        types.Quantity `json:"quantity" binding:"required,gt=0"`
}

// ToEntity converts request to domain entity.
func (r *CreatePurchaseReturnRequest) ToEntity() *purchase_return.PurchaseReturn {
	doc := purchase_return.New(parseID(r.ReceivingID), parseID(r.SupplierID), parseID(r.WarehouseID))
	doc.Number = r.Number
	doc.Date = r.Date
	doc.Reason = r.Reason
	doc.Comment = r.Comment

	for _, line := range r.Lines {
		doc.AddLine(parseID(line.ReceivingLineID), parseID(line.ProductID), line.Quantity)
		doc.Lines[len(doc.Lines)-1].LocationID = parseID(line.LocationID)
	}

	return doc
}

// UpdatePurchaseReturnRequest represents a request to update a purchase return.
type UpdatePurchaseReturnRequest struct {
	Date        *time.Time                  `json:"date,omitempty"`
	ReceivingID *string                     `json:"receivingId,omitempty"`
	SupplierID  *string                     `json:"supplierId,omitempty"`
	WarehouseID *string                     `json:"warehouseId,omitempty"`
	Reason      *string                     `json:"reason,omitempty"`
	Comment     *string                     `json:"comment,omitempty"`
	Lines       []PurchaseReturnLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdatePurchaseReturnRequest) ApplyTo(doc *purchase_return.PurchaseReturn) {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.ReceivingID != nil {
		doc.ReceivingID = parseID(*r.ReceivingID)
	}
	if r.SupplierID != nil {
		doc.SupplierID = parseID(*r.SupplierID)
	}
	if r.WarehouseID != nil {
		doc.WarehouseID = parseID(*r.WarehouseID)
	}
	if r.Reason != nil {
		doc.Reason = *r.Reason
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	if r.Lines != nil {
		doc.Lines = make([]purchase_return.Line, 0, len(r.Lines))
		for _, line := range r.Lines {
			doc.AddLine(parseID(line.ReceivingLineID), parseID(line.ProductID), line.Quantity)
			doc.Lines[len(doc.Lines)-1].LocationID = parseID(line.LocationID)
		}
	}
}

// --- Response DTOs ---

// PurchaseReturnResponse represents a purchase return in API responses.
type PurchaseReturnResponse struct {
	ID            string                       `json:"id"`
	Number        string                       `json:"number"`
	Date          time.Time                    `json:"date"`
	Confirmed     bool                         `json:"confirmed"`
	ConfirmedAt   *time.Time                   `json:"confirmedAt,omitempty"`
	ReceivingID   string                       `json:"receivingId"`
	SupplierID    string                       `json:"supplierId"`
	WarehouseID   string                       `json:"warehouseId"`
	Reason        string                       `json:"reason,omitempty"`
	TotalQuantity types.Quantity               `json:"totalQuantity"`
	Comment       string                       `json:"comment,omitempty"`
	Lines         []PurchaseReturnLineResponse `json:"lines,omitempty"`
	DeletionMark  bool                         `json:"deletionMark,omitempty"`
	Version       int                          `json:"version"`
	CreatedAt     time.Time                    `json:"createdAt"`
	UpdatedAt     time.Time                    `json:"updatedAt"`
}

// PurchaseReturnLineResponse represents a line in API responses.
type PurchaseReturnLineResponse struct {
	LineID          string         `json:"lineId"`
	LineNo          int            `json:"lineNo"`
	ReceivingLineID string         `json:"receivingLineId"`
	ProductID       string         `json:"productId"`
	LocationID      string         `json:"locationId,omitempty"`
	Quantity        types.Quantity `json:"quantity"`
}

// FromPurchaseReturn converts domain entity to response DTO.
func FromPurchaseReturn(doc *purchase_return.PurchaseReturn) *PurchaseReturnResponse {
	resp := &PurchaseReturnResponse{
		ID:            doc.ID.String(),
		Number:        doc.Number,
		Date:          doc.Date,
		Confirmed:     doc.Confirmed,
		ConfirmedAt:   doc.ConfirmedAt,
		ReceivingID:   doc.ReceivingID.String(),
		SupplierID:    doc.SupplierID.String(),
		WarehouseID:   doc.WarehouseID.String(),
		Reason:        doc.Reason,
		TotalQuantity: doc.TotalQuantity,
		Comment:       doc.Comment,
		DeletionMark:  doc.DeletionMark,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}

	resp.Lines = make([]PurchaseReturnLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lineResp := PurchaseReturnLineResponse{
			LineID:          line.LineID.String(),
			LineNo:          line.LineNo,
			ReceivingLineID: line.ReceivingLineID.String(),
			ProductID:       line.ProductID.String(),
			Quantity:        line.Quantity,
		}
		if !id.IsNil(line.LocationID) {
			lineResp.LocationID = line.LocationID.String()
		}
		resp.Lines[i] = lineResp
	}

	return resp
}

// PurchaseReturnListResponse represents a list of purchase returns.
type PurchaseReturnListResponse struct {
	Items      []*PurchaseReturnResponse `json:"items"`
	TotalCount int                       `json:"totalCount"`
	Limit      int                       `json:"limit"`
	Offset     int                       `json:"offset"`
}
