package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/documents/purchase_order"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable     = "doc_purchase_orders"
	purchaseOrderLinesTable = "doc_purchase_order_lines"
)

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[*purchase_order.PurchaseOrder]
}

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txManager *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			purchaseOrdersTable,
			postgres.ExtractDBColumns[purchase_order.PurchaseOrder](),
			func() *purchase_order.PurchaseOrder { return &purchase_order.PurchaseOrder{} },
		),
	}
}

// GetLines retrieves lines for a purchase order.
func (r *PurchaseOrderRepo) GetLines(ctx context.Context, docID id.ID) ([]purchase_order.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id",
			"quantity", "unit_price", "amount", "received_quantity",
		).
		From(purchaseOrderLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []purchase_order.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a purchase order (delete existing + insert new).
// Received sums survive the rewrite: they are re-applied afterwards by
// SetLineReceivedQuantities via the refresh flow.
func (r *PurchaseOrderRepo) SaveLines(ctx context.Context, docID id.ID, lines []purchase_order.Line) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + purchaseOrderLinesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(purchaseOrderLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id",
			"quantity", "unit_price", "amount", "received_quantity",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID,
			line.Quantity, line.UnitPrice, line.Amount, line.ReceivedQuantity,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// SetLineReceivedQuantities overwrites received_quantity per line. Lines
// absent from the map are reset to zero.
func (r *PurchaseOrderRepo) SetLineReceivedQuantities(ctx context.Context, docID id.ID, received map[id.ID]types.Quantity) error {
	querier := r.querier(ctx)

	resetSQL := "UPDATE " + purchaseOrderLinesTable + " SET received_quantity = 0 WHERE document_id = $1"
	if _, err := querier.Exec(ctx, resetSQL, docID); err != nil {
		return fmt.Errorf("reset received quantities: %w", err)
	}

	setSQL := "UPDATE " + purchaseOrderLinesTable +
		" SET received_quantity = $1 WHERE document_id = $2 AND line_id = $3"
	for lineID, qty := range received {
		if _, err := querier.Exec(ctx, setSQL, qty, docID, lineID); err != nil {
			return fmt.Errorf("set received quantity: %w", err)
		}
	}

	return nil
}

// List retrieves purchase orders with filtering.
func (r *PurchaseOrderRepo) List(ctx context.Context, filter purchase_order.ListFilter) (domain.ListResult[*purchase_order.PurchaseOrder], error) {
	q := r.applyCommonFilter(r.baseSelect(), filter.ListFilter)

	if !id.IsNil(filter.SupplierID) {
		q = q.Where(squirrel.Eq{"supplier_id": filter.SupplierID})
	}
	if !id.IsNil(filter.WarehouseID) {
		q = q.Where(squirrel.Eq{"warehouse_id": filter.WarehouseID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}

	return r.selectPage(ctx, q, filter.ListFilter)
}
