package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/documents/purchase_return"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	purchaseReturnsTable     = "doc_purchase_returns"
	purchaseReturnLinesTable = "doc_purchase_return_lines"
)

// PurchaseReturnRepo implements purchase_return.Repository. Its
// SumReturnedByReceivingLine also serves as receiving.ReturnedQuantitySource.
type PurchaseReturnRepo struct {
	*BaseDocumentRepo[*purchase_return.PurchaseReturn]
}

var _ purchase_return.Repository = (*PurchaseReturnRepo)(nil)

// NewPurchaseReturnRepo creates a new purchase return repository.
func NewPurchaseReturnRepo(txManager *postgres.TxManager) *PurchaseReturnRepo {
	return &PurchaseReturnRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			purchaseReturnsTable,
			postgres.ExtractDBColumns[purchase_return.PurchaseReturn](),
			func() *purchase_return.PurchaseReturn { return &purchase_return.PurchaseReturn{} },
		),
	}
}

// GetLines retrieves lines for a purchase return.
func (r *PurchaseReturnRepo) GetLines(ctx context.Context, docID id.ID) ([]purchase_return.Line, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "receiving_line_id", "product_id", "location_id",
			"quantity",
		).
		From(purchaseReturnLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []purchase_return.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a purchase return (delete existing + insert new).
func (r *PurchaseReturnRepo) SaveLines(ctx context.Context, docID id.ID, lines []purchase_return.Line) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + purchaseReturnLinesTable + " WHERE document_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, docID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(purchaseReturnLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "receiving_line_id", "product_id", "location_id",
			"quantity",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ReceivingLineID, line.ProductID, line.LocationID,
			line.Quantity,
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

// SumReturnedByReceivingLine sums confirmed, non-deleted return line
// quantities per receiving line of the given receiving.
func (r *PurchaseReturnRepo) SumReturnedByReceivingLine(ctx context.Context, receivingID id.ID) (map[id.ID]types.Quantity, error) {
	const sql = `
		SELECT l.receiving_line_id, SUM(l.quantity) AS returned
		FROM doc_purchase_return_lines l
		JOIN doc_purchase_returns d ON d.id = l.document_id
		WHERE d.receiving_id = $1
		  AND d.confirmed
		  AND NOT d.deletion_mark
		GROUP BY l.receiving_line_id
	`

	rows, err := r.querier(ctx).Query(ctx, sql, receivingID)
	if err != nil {
		return nil, fmt.Errorf("query returned sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[id.ID]types.Quantity)
	for rows.Next() {
		var lineID id.ID
		var scaled int64
		if err := rows.Scan(&lineID, &scaled); err != nil {
			return nil, fmt.Errorf("scan returned sum: %w", err)
		}
		sums[lineID] = types.NewQuantityFromInt64Scaled(scaled)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate returned sums: %w", err)
	}

	return sums, nil
}

// List retrieves purchase returns with filtering.
func (r *PurchaseReturnRepo) List(ctx context.Context, filter purchase_return.ListFilter) (domain.ListResult[*purchase_return.PurchaseReturn], error) {
	q := r.applyCommonFilter(r.baseSelect(), filter.ListFilter)

	if !id.IsNil(filter.ReceivingID) {
		q = q.Where(squirrel.Eq{"receiving_id": filter.ReceivingID})
	}
	if !id.IsNil(filter.SupplierID) {
		q = q.Where(squirrel.Eq{"supplier_id": filter.SupplierID})
	}
	if !id.IsNil(filter.WarehouseID) {
		q = q.Where(squirrel.Eq{"warehouse_id": filter.WarehouseID})
	}

	return r.selectPage(ctx, q, filter.ListFilter)
}
