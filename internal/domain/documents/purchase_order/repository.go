package purchase_order

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
)

// Repository defines persistence operations for purchase orders.
type Repository interface {
	Create(ctx context.Context, doc *PurchaseOrder) error
	GetByID(ctx context.Context, docID id.ID) (*PurchaseOrder, error)
	Update(ctx context.Context, doc *PurchaseOrder) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// SetLineReceivedQuantities overwrites received_quantity per line.
	// Lines absent from the map are reset to zero.
	SetLineReceivedQuantities(ctx context.Context, docID id.ID, received map[id.ID]types.Quantity) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error)
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	domain.ListFilter

	SupplierID  id.ID
	WarehouseID id.ID
	Status      Status
}

// ReceivedQuantitySource reports confirmed receiving quantities per order
// line. Implemented by the receiving repository; the indirection keeps the
// order package from importing the receiving package.
type ReceivedQuantitySource interface {
	SumReceivedByOrderLine(ctx context.Context, orderID id.ID) (map[id.ID]types.Quantity, error)
}
