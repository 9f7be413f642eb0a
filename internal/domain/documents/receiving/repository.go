package receiving

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/documents/purchase_order"
)

// Repository defines persistence operations for receivings.
type Repository interface {
	Create(ctx context.Context, doc *Receiving) error
	GetByID(ctx context.Context, docID id.ID) (*Receiving, error)
	Update(ctx context.Context, doc *Receiving) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// SetLineReturnedQuantities overwrites returned_quantity per line.
	// Lines absent from the map are reset to zero.
	SetLineReturnedQuantities(ctx context.Context, docID id.ID, returned map[id.ID]types.Quantity) error

	// SumReceivedByOrderLine sums confirmed, non-deleted receiving line
	// quantities per order line. Feeds purchase order received-quantity
	// refreshes.
	SumReceivedByOrderLine(ctx context.Context, orderID id.ID) (map[id.ID]types.Quantity, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Receiving], error)
}

// ListFilter narrows receiving listings.
type ListFilter struct {
	domain.ListFilter

	OrderID     id.ID
	SupplierID  id.ID
	WarehouseID id.ID
}

// ReturnedQuantitySource reports confirmed returned quantities per
// receiving line. Implemented by the purchase return repository.
type ReturnedQuantitySource interface {
	SumReturnedByReceivingLine(ctx context.Context, receivingID id.ID) (map[id.ID]types.Quantity, error)
}

// OrderSync exposes the order side of receiving flows: reading the order
// to bound receipts against its lines, and pushing received-quantity
// refreshes back. Implemented by the purchase order service.
type OrderSync interface {
	GetByID(ctx context.Context, orderID id.ID) (*purchase_order.PurchaseOrder, error)
	RefreshReceivedQuantities(ctx context.Context, orderID id.ID) error
}
