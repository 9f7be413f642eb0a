// Package purchase_return provides the PurchaseReturn document: goods
// sent back to the supplier against a confirmed receiving. Confirmation
// writes ledger decreases bounded by what the receiving still holds
// returnable.
package purchase_return

import (
	"context"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
)

// DocumentType is the ledger correlation type for purchase returns.
const DocumentType = "purchase_return"

// PurchaseReturn represents a return of received goods to the supplier.
type PurchaseReturn struct {
	entity.Document

	// ReceivingID is the receiving being returned against (required)
	ReceivingID id.ID `db:"receiving_id" json:"receivingId"`

	SupplierID  id.ID `db:"supplier_id" json:"supplierId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Reason is a free-form return reason (damage, wrong item, etc.)
	Reason string `db:"reason" json:"reason,omitempty"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`

	// Table part: returned goods
	Lines []Line `db:"-" json:"lines"`
}

// Line represents one returned product.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	// ReceivingLineID links to the receiving line being returned (required)
	ReceivingLineID id.ID `db:"receiving_line_id" json:"receivingLineId"`

	ProductID  id.ID `db:"product_id" json:"productId"`
	LocationID id.ID `db:"location_id" json:"locationId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
}

// New creates a new purchase return document.
func New(receivingID, supplierID, warehouseID id.ID) *PurchaseReturn {
	return &PurchaseReturn{
		Document:    entity.NewDocument(),
		ReceivingID: receivingID,
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a return line and recalculates totals.
func (p *PurchaseReturn) AddLine(receivingLineID, productID id.ID, qty types.Quantity) {
	p.Lines = append(p.Lines, Line{
		LineID:          id.New(),
		LineNo:          len(p.Lines) + 1,
		ReceivingLineID: receivingLineID,
		ProductID:       productID,
		Quantity:        qty,
	})
	p.RecalculateTotals()
}

// RecalculateTotals updates document totals from lines.
func (p *PurchaseReturn) RecalculateTotals() {
	p.TotalQuantity = 0
	for _, line := range p.Lines {
		p.TotalQuantity += line.Quantity
	}
}

// Ref returns the ledger correlation reference.
func (p *PurchaseReturn) Ref() entity.DocumentRef {
	return p.Document.Ref(DocumentType)
}

// QuantityByReceivingLine sums requested return quantity per receiving line.
func (p *PurchaseReturn) QuantityByReceivingLine() map[id.ID]types.Quantity {
	sums := make(map[id.ID]types.Quantity, len(p.Lines))
	for _, line := range p.Lines {
		sums[line.ReceivingLineID] += line.Quantity
	}
	return sums
}

// TargetLines converts document lines into the desired ledger effect.
// The reconciliation direction makes these net negative.
func (p *PurchaseReturn) TargetLines() []reconcile.TargetLine {
	target := make([]reconcile.TargetLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		target = append(target, reconcile.TargetLine{
			Key: entity.StockKey{
				ProductID:   line.ProductID,
				WarehouseID: p.WarehouseID,
				LocationID:  line.LocationID,
			},
			Quantity: line.Quantity,
		})
	}
	return target
}

// Validate implements entity.Validatable.
func (p *PurchaseReturn) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(p.ReceivingID) {
		return apperror.NewValidation("receiving is required").
			WithDetail("field", "receivingId")
	}
	if id.IsNil(p.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(p.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(p.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range p.Lines {
		if id.IsNil(line.ReceivingLineID) {
			return apperror.NewValidation("receiving line reference is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewInvalidQuantity("line quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}
