package purchase_return

import (
	"context"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/documents/receiving"
)

// Repository defines persistence operations for purchase returns.
type Repository interface {
	Create(ctx context.Context, doc *PurchaseReturn) error
	GetByID(ctx context.Context, docID id.ID) (*PurchaseReturn, error)
	Update(ctx context.Context, doc *PurchaseReturn) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// SumReturnedByReceivingLine sums confirmed, non-deleted return line
	// quantities per receiving line. Feeds receiving returned-quantity
	// refreshes; also implements receiving.ReturnedQuantitySource.
	SumReturnedByReceivingLine(ctx context.Context, receivingID id.ID) (map[id.ID]types.Quantity, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseReturn], error)
}

// ListFilter narrows purchase return listings.
type ListFilter struct {
	domain.ListFilter

	ReceivingID id.ID
	SupplierID  id.ID
	WarehouseID id.ID
}

// ReceivingSource is the slice of the receiving service the return
// service needs: bound lookups and returned-quantity refreshes.
type ReceivingSource interface {
	GetByID(ctx context.Context, docID id.ID) (*receiving.Receiving, error)
	RefreshReturnedQuantities(ctx context.Context, receivingID id.ID) error
}
