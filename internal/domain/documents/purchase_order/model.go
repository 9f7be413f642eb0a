// Package purchase_order provides the PurchaseOrder document.
package purchase_order

import (
	"context"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// DocumentType is the ledger correlation type for purchase orders.
// Orders never write ledger entries themselves; the constant exists for
// journal queries and event payloads.
const DocumentType = "purchase_order"

// Status is the purchase order approval state.
type Status string

const (
	// StatusDraft - editable, not yet submitted to the supplier
	StatusDraft Status = "draft"
	// StatusApproved - accepted, receivings may reference it
	StatusApproved Status = "approved"
	// StatusRejected - declined, terminal
	StatusRejected Status = "rejected"
	// StatusClosed - fulfilled or cancelled after approval, terminal
	StatusClosed Status = "closed"
)

// PurchaseOrder represents an order placed with a supplier.
// It carries no stock effect of its own: stock moves when receivings
// against the order are confirmed.
type PurchaseOrder struct {
	entity.Document

	SupplierID  id.ID `db:"supplier_id" json:"supplierId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Status Status `db:"status" json:"status"`

	// ApprovedBy / ApprovedAt record who accepted the order; cleared
	// again when an approved order is rejected
	ApprovedBy string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	// RejectionReason is filled on rejection
	RejectionReason string `db:"rejection_reason" json:"rejectionReason,omitempty"`

	Currency string `db:"currency" json:"currency"`

	// ExpectedAt is the promised delivery date
	ExpectedAt *time.Time `db:"expected_at" json:"expectedAt,omitempty"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.Money    `db:"total_amount" json:"totalAmount"`

	// Table part: ordered goods
	Lines []Line `db:"-" json:"lines"`
}

// Line represents one ordered product.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`
	Amount    types.Money    `db:"amount" json:"amount"`

	// ReceivedQuantity is re-summed from confirmed receiving lines that
	// reference this line. Never incremented in place: every refresh
	// recomputes the sum, so edits and deletes of receivings stay
	// consistent automatically.
	ReceivedQuantity types.Quantity `db:"received_quantity" json:"receivedQuantity"`
}

// New creates a draft purchase order.
func New(supplierID, warehouseID id.ID) *PurchaseOrder {
	return &PurchaseOrder{
		Document:    entity.NewDocument(),
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Currency:    "USD",
		Lines:       make([]Line, 0),
	}
}

// AddLine appends an order line and recalculates totals.
func (o *PurchaseOrder) AddLine(productID id.ID, qty types.Quantity, unitPrice types.Money) {
	line := Line{
		LineID:    id.New(),
		LineNo:    len(o.Lines) + 1,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		Amount:    unitPrice.Mul(qty.Decimal()),
	}
	o.Lines = append(o.Lines, line)
	o.RecalculateTotals()
}

// RecalculateTotals updates document totals from lines.
func (o *PurchaseOrder) RecalculateTotals() {
	o.TotalQuantity = 0
	o.TotalAmount = types.ZeroMoney()
	for _, line := range o.Lines {
		o.TotalQuantity += line.Quantity
		o.TotalAmount = o.TotalAmount.Add(line.Amount)
	}
}

// TotalReceived sums received quantity over all lines.
func (o *PurchaseOrder) TotalReceived() types.Quantity {
	var total types.Quantity
	for _, line := range o.Lines {
		total += line.ReceivedQuantity
	}
	return total
}

// HasReceipts reports whether any line has confirmed receivings.
func (o *PurchaseOrder) HasReceipts() bool {
	return o.TotalReceived().IsPositive()
}

// IsFullyReceived reports whether every line has received at least its
// ordered quantity.
func (o *PurchaseOrder) IsFullyReceived() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, line := range o.Lines {
		if line.ReceivedQuantity < line.Quantity {
			return false
		}
	}
	return true
}

// Validate implements entity.Validatable.
func (o *PurchaseOrder) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(o.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(o.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range o.Lines {
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
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price must not be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// canTransition checks the approval state machine.
func (o *PurchaseOrder) canTransition(to Status) error {
	allowed := map[Status][]Status{
		StatusDraft:    {StatusApproved, StatusRejected},
		StatusApproved: {StatusRejected, StatusClosed},
	}

	for _, s := range allowed[o.Status] {
		if s == to {
			return nil
		}
	}
	return apperror.NewBusinessRule(apperror.CodeBusinessRule, "invalid status transition").
		WithDetail("from", string(o.Status)).
		WithDetail("to", string(to))
}
