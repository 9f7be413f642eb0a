package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/documents/receiving"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	receivingsTable     = "doc_receivings"
	receivingLinesTable = "doc_receiving_lines"
)

// ReceivingRepo implements receiving.Repository. Its SumReceivedByOrderLine
// also serves as purchase_order.ReceivedQuantitySource.
type ReceivingRepo struct {
	*BaseDocumentRepo[*receiving.Receiving]
}

var _ receiving.Repository = (*ReceivingRepo)(nil)

// NewReceivingRepo creates a new receiving repository.
func NewReceivingRepo(txManager *postgres.TxManager) *ReceivingRepo {
	return &ReceivingRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			receivingsTable,
			postgres.ExtractDBColumns[receiving.Receiving](),
			func() *receiving.Receiving { return &receiving.Receiving{} },
		),
	}
}

// GetLines retrieves lines for a receiving.
func (r *ReceivingRepo) GetLines(ctx context.Context, docID id.ID) ([]receiving.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "order_line_id", "product_id", "location_id",
			"quantity", "unit_cost",
			"lot_number", "batch_date", "expiry_date",
			"returned_quantity",
		).
		From(receivingLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []receiving.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a receiving (delete existing + insert new).
func (r *ReceivingRepo) SaveLines(ctx context.Context, docID id.ID, lines []receiving.Line) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + receivingLinesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(receivingLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "order_line_id", "product_id", "location_id",
			"quantity", "unit_cost",
			"lot_number", "batch_date", "expiry_date",
			"returned_quantity",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.OrderLineID, line.ProductID, line.LocationID,
			line.Quantity, line.UnitCost,
			line.LotNumber, line.BatchDate, line.ExpiryDate,
			line.ReturnedQuantity,
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

// SetLineReturnedQuantities overwrites returned_quantity per line. Lines
// absent from the map are reset to zero.
func (r *ReceivingRepo) SetLineReturnedQuantities(ctx context.Context, docID id.ID, returned map[id.ID]types.Quantity) error {
	querier := r.querier(ctx)

	resetSQL := "UPDATE " + receivingLinesTable + " SET returned_quantity = 0 WHERE document_id = $1"
	if _, err := querier.Exec(ctx, resetSQL, docID); err != nil {
		return fmt.Errorf("reset returned quantities: %w", err)
	}

	setSQL := "UPDATE " + receivingLinesTable +
		" SET returned_quantity = $1 WHERE document_id = $2 AND line_id = $3"
	for lineID, qty := range returned {
		if _, err := querier.Exec(ctx, setSQL, qty, docID, lineID); err != nil {
			return fmt.Errorf("set returned quantity: %w", err)
		}
	}

	return nil
}

// SumReceivedByOrderLine sums confirmed, non-deleted receiving line
// quantities per order line of the given order.
func (r *ReceivingRepo) SumReceivedByOrderLine(ctx context.Context, orderID id.ID) (map[id.ID]types.Quantity, error) {
	const sql = `
		SELECT l.order_line_id, SUM(l.quantity) AS received
		FROM doc_receiving_lines l
		JOIN doc_receivings d ON d.id = l.document_id
		WHERE d.order_id = $1
		  AND d.confirmed
		  AND NOT d.deletion_mark
		  AND l.order_line_id IS NOT NULL
		GROUP BY l.order_line_id
	`

	rows, err := r.querier(ctx).Query(ctx, sql, orderID)
	if err != nil {
		return nil, fmt.Errorf("query received sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[id.ID]types.Quantity)
	for rows.Next() {
		var lineID id.ID
		var scaled int64
		if err := rows.Scan(&lineID, &scaled); err != nil {
			return nil, fmt.Errorf("scan received sum: %w", err)
		}
		sums[lineID] = types.NewQuantityFromInt64Scaled(scaled)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate received sums: %w", err)
	}

	return sums, nil
}

// List retrieves receivings with filtering.
func (r *ReceivingRepo) List(ctx context.Context, filter receiving.ListFilter) (domain.ListResult[*receiving.Receiving], error) {
	q := r.applyCommonFilter(r.baseSelect(), filter.ListFilter)

	if !id.IsNil(filter.OrderID) {
		q = q.Where(squirrel.Eq{"order_id": filter.OrderID})
	}
	if !id.IsNil(filter.SupplierID) {
		q = q.Where(squirrel.Eq{"supplier_id": filter.SupplierID})
	}
	if !id.IsNil(filter.WarehouseID) {
		q = q.Where(squirrel.Eq{"warehouse_id": filter.WarehouseID})
	}

	return r.selectPage(ctx, q, filter.ListFilter)
}
