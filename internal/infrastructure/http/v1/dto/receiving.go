package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/documents/receiving"
)

// --- Request DTOs ---

// CreateReceivingRequest represents a request to create a receiving.
type CreateReceivingRequest struct {
	Number      string                 `json:"number,omitempty"`
	Date        time.Time              `json:"date" binding:"required"`
	OrderID     string                 `json:"orderId,omitempty"`
	SupplierID  string                 `json:"supplierId" binding:"required"`
	WarehouseID string                 `json:"warehouseId" binding:"required"`
	Currency    string                 `json:"currency,omitempty"`
	Comment     string                 `json:"comment,omitempty"`
	Lines       []ReceivingLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceivingLineRequest represents a line in create/update request.
type ReceivingLineRequest struct {
	OrderLineID string         `json:"orderLineId,omitempty"`
	ProductID   string         `json:"productId" binding:"required"`
	LocationID  string         `json:"locationId,omitempty"`
	Quantity    types.Quantity `json:"quantity" binding:"required,gt=0"`
	UnitCost    types.Money    `json:"unitCost"`
	LotNumber   string         `json:"lotNumber,omitempty"`
	BatchDate   *time.Time     `json:"batchDate,omitempty"`
	ExpiryDate  *time.Time     `json:"expiryDate,omitempty"`
}

func (r ReceivingLineRequest) applyTo(line *receiving.Line) {
	line.LocationID = parseID(r.LocationID)
	line.LotNumber = r.LotNumber
	line.BatchDate = r.BatchDate
	line.ExpiryDate = r.ExpiryDate

	if r.OrderLineID != "" {
		orderLineID := parseID(r.OrderLineID)
		line.OrderLineID = &orderLineID
	}
}

// ToEntity converts request to domain entity.
func (r *CreateReceivingRequest) ToEntity() *receiving.Receiving {
	doc := receiving.New(parseID(r.SupplierID), parseID(r.WarehouseID))
	doc.Number = r.Number
	doc.Date = r.Date
	doc.OrderID = parseID(r.OrderID)
	doc.Comment = r.Comment

	if r.Currency != "" {
		doc.Currency = r.Currency
	}

	for _, lineReq := range r.Lines {
		line := doc.AddLine(parseID(lineReq.ProductID), lineReq.Quantity, lineReq.UnitCost)
		lineReq.applyTo(line)
	}

	return doc
}

// UpdateReceivingRequest represents a request to update a receiving.
// Line IDs, when provided, preserve identity across edits; a line that
// keeps its ID keeps its returned-quantity bookkeeping.
type UpdateReceivingRequest struct {
	Date        *time.Time                   `json:"date,omitempty"`
	OrderID     *string                      `json:"orderId,omitempty"`
	SupplierID  *string                      `json:"supplierId,omitempty"`
	WarehouseID *string                      `json:"warehouseId,omitempty"`
	Currency    *string                      `json:"currency,omitempty"`
	Comment     *string                      `json:"comment,omitempty"`
	Lines       []UpdateReceivingLineRequest `json:"lines,omitempty"`
}

// UpdateReceivingLineRequest carries an optional lineId for identity.
type UpdateReceivingLineRequest struct {
	LineID string `json:"lineId,omitempty"`
	ReceivingLineRequest
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateReceivingRequest) ApplyTo(doc *receiving.Receiving) {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.OrderID != nil {
		doc.OrderID = parseID(*r.OrderID)
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
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	if r.Lines != nil {
		doc.Lines = make([]receiving.Line, 0, len(r.Lines))
		for _, lineReq := range r.Lines {
			line := doc.AddLine(parseID(lineReq.ProductID), lineReq.Quantity, lineReq.UnitCost)
			lineReq.applyTo(line)
			if lineReq.LineID != "" {
				if lineID, err := id.Parse(lineReq.LineID); err == nil {
					line.LineID = lineID
				}
			}
		}
	}
}

// --- Response DTOs ---

// ReceivingResponse represents a receiving in API responses.
type ReceivingResponse struct {
	ID            string                  `json:"id"`
	Number        string                  `json:"number"`
	Date          time.Time               `json:"date"`
	Confirmed     bool                    `json:"confirmed"`
	ConfirmedAt   *time.Time              `json:"confirmedAt,omitempty"`
	OrderID       string                  `json:"orderId,omitempty"`
	SupplierID    string                  `json:"supplierId"`
	WarehouseID   string                  `json:"warehouseId"`
	Currency      string                  `json:"currency"`
	TotalQuantity types.Quantity          `json:"totalQuantity"`
	TotalAmount   types.Money             `json:"totalAmount"`
	Comment       string                  `json:"comment,omitempty"`
	Lines         []ReceivingLineResponse `json:"lines,omitempty"`
	DeletionMark  bool                    `json:"deletionMark,omitempty"`
	Version       int                     `json:"version"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// ReceivingLineResponse represents a line in API responses.
type ReceivingLineResponse struct {
	LineID           string         `json:"lineId"`
	LineNo           int            `json:"lineNo"`
	OrderLineID      string         `json:"orderLineId,omitempty"`
	ProductID        string         `json:"productId"`
	LocationID       string         `json:"locationId,omitempty"`
	Quantity         types.Quantity `json:"quantity"`
	UnitCost         types.Money    `json:"unitCost"`
	LotNumber        string         `json:"lotNumber,omitempty"`
	BatchDate        *time.Time     `json:"batchDate,omitempty"`
	ExpiryDate       *time.Time     `json:"expiryDate,omitempty"`
	ReturnedQuantity types.Quantity `json:"returnedQuantity"`
}

// FromReceiving converts domain entity to response DTO.
func FromReceiving(doc *receiving.Receiving) *ReceivingResponse {
	resp := &ReceivingResponse{
		ID:            doc.ID.String(),
		Number:        doc.Number,
		Date:          doc.Date,
		Confirmed:     doc.Confirmed,
		ConfirmedAt:   doc.ConfirmedAt,
		SupplierID:    doc.SupplierID.String(),
		WarehouseID:   doc.WarehouseID.String(),
		Currency:      doc.Currency,
		TotalQuantity: doc.TotalQuantity,
		TotalAmount:   doc.TotalAmount,
		Comment:       doc.Comment,
		DeletionMark:  doc.DeletionMark,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}

	if !id.IsNil(doc.OrderID) {
		resp.OrderID = doc.OrderID.String()
	}

	resp.Lines = make([]ReceivingLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lineResp := ReceivingLineResponse{
			LineID:           line.LineID.String(),
			LineNo:           line.LineNo,
			ProductID:        line.ProductID.String(),
			Quantity:         line.Quantity,
			UnitCost:         line.UnitCost,
			LotNumber:        line.LotNumber,
			BatchDate:        line.BatchDate,
			ExpiryDate:       line.ExpiryDate,
			ReturnedQuantity: line.ReturnedQuantity,
		}
		if line.OrderLineID != nil {
			lineResp.OrderLineID = line.OrderLineID.String()
		}
		if !id.IsNil(line.LocationID) {
			lineResp.LocationID = line.LocationID.String()
		}
		resp.Lines[i] = lineResp
	}

	return resp
}

// ReceivingListResponse represents a list of receivings.
type ReceivingListResponse struct {
	Items      []*ReceivingResponse `json:"items"`
	TotalCount int                  `json:"totalCount"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}
