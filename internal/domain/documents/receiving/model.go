// Package receiving provides the Receiving document: goods arriving from
// a supplier into a warehouse. Confirmation writes ledger increases; edits
// and deletes of confirmed receivings go through differential
// reconciliation.
package receiving

import (
	"context"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
)

// DocumentType is the ledger correlation type for receivings.
const DocumentType = "receiving"

// Receiving represents a goods receiving document.
type Receiving struct {
	entity.Document

	// OrderID links to the purchase order being fulfilled (optional)
	OrderID id.ID `db:"order_id" json:"orderId,omitempty"`

	SupplierID  id.ID `db:"supplier_id" json:"supplierId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Currency string `db:"currency" json:"currency"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.Money    `db:"total_amount" json:"totalAmount"`

	// Table part: received goods
	Lines []Line `db:"-" json:"lines"`
}

// Line represents one received product.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	// OrderLineID links to the order line being fulfilled (optional)
	OrderLineID *id.ID `db:"order_line_id" json:"orderLineId,omitempty"`

	ProductID id.ID `db:"product_id" json:"productId"`

	// LocationID narrows to a storage location; nil UUID means
	// warehouse-level
	LocationID id.ID `db:"location_id" json:"locationId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	UnitCost types.Money    `db:"unit_cost" json:"unitCost"`

	entity.BatchInfo

	// ReturnedQuantity is re-summed from confirmed return lines that
	// reference this line. Never incremented in place.
	ReturnedQuantity types.Quantity `db:"returned_quantity" json:"returnedQuantity"`
}

// New creates a new receiving document.
func New(supplierID, warehouseID id.ID) *Receiving {
	return &Receiving{
		Document:    entity.NewDocument(),
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Currency:    "USD",
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a line and recalculates totals.
func (r *Receiving) AddLine(productID id.ID, qty types.Quantity, unitCost types.Money) *Line {
	line := Line{
		LineID:    id.New(),
		LineNo:    len(r.Lines) + 1,
		ProductID: productID,
		Quantity:  qty,
		UnitCost:  unitCost,
	}
	r.Lines = append(r.Lines, line)
	r.RecalculateTotals()
	return &r.Lines[len(r.Lines)-1]
}

// RecalculateTotals updates document totals from lines.
func (r *Receiving) RecalculateTotals() {
	r.TotalQuantity = 0
	r.TotalAmount = types.ZeroMoney()
	for _, line := range r.Lines {
		r.TotalQuantity += line.Quantity
		r.TotalAmount = r.TotalAmount.Add(line.UnitCost.Mul(line.Quantity.Decimal()))
	}
}

// Ref returns the ledger correlation reference.
func (r *Receiving) Ref() entity.DocumentRef {
	return r.Document.Ref(DocumentType)
}

// HasReturns reports whether any line has confirmed returns against it.
func (r *Receiving) HasReturns() bool {
	for _, line := range r.Lines {
		if line.ReturnedQuantity.IsPositive() {
			return true
		}
	}
	return false
}

// QuantityByOrderLine sums received quantity per referenced order line.
// Lines without an order reference are skipped.
func (r *Receiving) QuantityByOrderLine() map[id.ID]types.Quantity {
	sums := make(map[id.ID]types.Quantity, len(r.Lines))
	for _, line := range r.Lines {
		if line.OrderLineID != nil {
			sums[*line.OrderLineID] += line.Quantity
		}
	}
	return sums
}

// StockKeyForLine builds the accounting key for a line.
func (r *Receiving) StockKeyForLine(line Line) entity.StockKey {
	return entity.StockKey{
		ProductID:   line.ProductID,
		WarehouseID: r.WarehouseID,
		LocationID:  line.LocationID,
	}
}

// TargetLines converts document lines into the desired ledger effect.
func (r *Receiving) TargetLines() []reconcile.TargetLine {
	target := make([]reconcile.TargetLine, 0, len(r.Lines))
	for _, line := range r.Lines {
		target = append(target, reconcile.TargetLine{
			Key:      r.StockKeyForLine(line),
			Quantity: line.Quantity,
			UnitCost: line.UnitCost,
			Batch:    line.BatchInfo,
		})
	}
	return target
}

// Validate implements entity.Validatable.
func (r *Receiving) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(r.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range r.Lines {
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
		if line.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost must not be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.OrderLineID != nil && id.IsNil(r.OrderID) {
			return apperror.NewValidation("order line reference requires an order").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}
