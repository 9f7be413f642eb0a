// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	entriesTable    = "ledger_entries"
	aggregatesTable = "stock_aggregates"
)

var entryColumns = []string{
	"entry_id", "product_id", "warehouse_id", "location_id",
	"signed_quantity", "transaction_type",
	"document_type", "document_id", "document_number",
	"op_tag", "unit_cost",
	"lot_number", "batch_date", "expiry_date",
	"created_at",
}

var aggregateColumns = []string{
	"product_id", "warehouse_id", "location_id",
	"on_hand", "reserved", "in_transit",
	"average_cost", "last_movement_at", "updated_at",
}

// Repo implements ledger.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ ledger.Repository = (*Repo)(nil)

// NewRepo creates a new ledger repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InsertEntry appends the entry and folds it into the aggregate in the
// same statement pair. Callers hold the aggregate row lock via
// LockAggregate, so the read-modify-write on average cost is safe.
func (r *Repo) InsertEntry(ctx context.Context, e entity.LedgerEntry) error {
	q := r.builder.Insert(entriesTable).
		Columns(entryColumns...).
		Values(
			e.EntryID, e.ProductID, e.WarehouseID, e.LocationID,
			e.SignedQuantity, e.Type,
			e.DocumentRef.Type, e.DocumentRef.ID, e.DocumentRef.Number,
			e.OpTag, e.UnitCost,
			e.LotNumber, e.BatchDate, e.ExpiryDate,
			e.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	// Weighted average cost moves only on priced increases; scaled
	// quantities cancel out in the ratio, so no rescaling is needed.
	const upsert = `
		INSERT INTO stock_aggregates
			(product_id, warehouse_id, location_id, on_hand, reserved, in_transit, average_cost, last_movement_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, CASE WHEN $4 > 0 THEN $5 ELSE 0 END, $6, NOW())
		ON CONFLICT (product_id, warehouse_id, location_id) DO UPDATE SET
			average_cost = CASE
				WHEN EXCLUDED.on_hand > 0
				 AND $5::numeric <> 0
				 AND stock_aggregates.on_hand + EXCLUDED.on_hand > 0
				THEN (stock_aggregates.average_cost * stock_aggregates.on_hand
					+ $5::numeric * EXCLUDED.on_hand)
					/ (stock_aggregates.on_hand + EXCLUDED.on_hand)
				ELSE stock_aggregates.average_cost
			END,
			on_hand          = stock_aggregates.on_hand + EXCLUDED.on_hand,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at       = NOW()
	`
	_, err = querier.Exec(ctx, upsert,
		e.ProductID, e.WarehouseID, e.LocationID,
		e.SignedQuantity, e.UnitCost, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}

	return nil
}

// LockAggregate returns the aggregate with a row lock, creating a zero
// row first if the key has never moved.
func (r *Repo) LockAggregate(ctx context.Context, key entity.StockKey) (entity.StockAggregate, error) {
	querier := r.txManager.GetQuerier(ctx)

	const ensure = `
		INSERT INTO stock_aggregates
			(product_id, warehouse_id, location_id, on_hand, reserved, in_transit, average_cost, last_movement_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, NOW(), NOW())
		ON CONFLICT (product_id, warehouse_id, location_id) DO NOTHING
	`
	if _, err := querier.Exec(ctx, ensure, key.ProductID, key.WarehouseID, key.LocationID); err != nil {
		return entity.StockAggregate{}, fmt.Errorf("ensure aggregate: %w", err)
	}

	const lock = `
		SELECT product_id, warehouse_id, location_id,
		       on_hand, reserved, in_transit,
		       average_cost, last_movement_at, updated_at
		FROM stock_aggregates
		WHERE product_id = $1 AND warehouse_id = $2 AND location_id = $3
		FOR UPDATE
	`
	var agg entity.StockAggregate
	if err := pgxscan.Get(ctx, querier, &agg, lock, key.ProductID, key.WarehouseID, key.LocationID); err != nil {
		return entity.StockAggregate{}, fmt.Errorf("lock aggregate: %w", err)
	}

	return agg, nil
}

// GetAggregate returns the aggregate or NotFound.
func (r *Repo) GetAggregate(ctx context.Context, key entity.StockKey) (entity.StockAggregate, error) {
	q := r.builder.Select(aggregateColumns...).
		From(aggregatesTable).
		Where(squirrel.Eq{
			"product_id":   key.ProductID,
			"warehouse_id": key.WarehouseID,
			"location_id":  key.LocationID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity.StockAggregate{}, fmt.Errorf("build query: %w", err)
	}

	var agg entity.StockAggregate
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &agg, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.StockAggregate{}, apperror.NewNotFound("stock aggregate", key.ProductID)
		}
		return entity.StockAggregate{}, fmt.Errorf("get aggregate: %w", err)
	}

	return agg, nil
}

// ListAggregates returns aggregates matching the filter.
func (r *Repo) ListAggregates(ctx context.Context, filter ledger.AggregateFilter) ([]entity.StockAggregate, error) {
	q := r.builder.Select(aggregateColumns...).From(aggregatesTable)

	if !id.IsNil(filter.WarehouseID) {
		q = q.Where(squirrel.Eq{"warehouse_id": filter.WarehouseID})
	}
	if !id.IsNil(filter.ProductID) {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductID})
	}
	if filter.ExcludeZero {
		q = q.Where("(on_hand <> 0 OR reserved <> 0)")
	}

	q = q.OrderBy("product_id", "warehouse_id", "location_id")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var aggs []entity.StockAggregate
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &aggs, sql, args...); err != nil {
		return nil, fmt.Errorf("select aggregates: %w", err)
	}

	return aggs, nil
}

// NetAppliedByDocument sums signed quantities per stock key over every
// entry correlated to the document.
func (r *Repo) NetAppliedByDocument(ctx context.Context, ref entity.DocumentRef) (map[entity.StockKey]types.Quantity, error) {
	const sql = `
		SELECT product_id, warehouse_id, location_id,
		       SUM(signed_quantity) AS net
		FROM ledger_entries
		WHERE document_type = $1 AND document_id = $2
		GROUP BY product_id, warehouse_id, location_id
		HAVING SUM(signed_quantity) <> 0
	`

	querier := r.txManager.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("query net applied: %w", err)
	}
	defer rows.Close()

	net := make(map[entity.StockKey]types.Quantity)
	for rows.Next() {
		var key entity.StockKey
		var scaled int64
		if err := rows.Scan(&key.ProductID, &key.WarehouseID, &key.LocationID, &scaled); err != nil {
			return nil, fmt.Errorf("scan net applied: %w", err)
		}
		net[key] = types.NewQuantityFromInt64Scaled(scaled)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate net applied: %w", err)
	}

	return net, nil
}

// ListEntriesByDocument returns the document's entries in insertion order.
func (r *Repo) ListEntriesByDocument(ctx context.Context, ref entity.DocumentRef) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{
			"document_type": ref.Type,
			"document_id":   ref.ID,
		}).
		OrderBy("created_at", "entry_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// ListEntriesByProduct returns the product's entries, newest first.
func (r *Repo) ListEntriesByProduct(ctx context.Context, productID id.ID, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"product_id": productID})

	if !id.IsNil(filter.WarehouseID) {
		q = q.Where(squirrel.Eq{"warehouse_id": filter.WarehouseID})
	}
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"created_at": filter.To})
	}

	q = q.OrderBy("created_at DESC", "entry_id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// ApplyReservedDelta adjusts the reserved quantity on an existing
// aggregate row.
func (r *Repo) ApplyReservedDelta(ctx context.Context, key entity.StockKey, delta types.Quantity) error {
	const sql = `
		UPDATE stock_aggregates
		SET reserved = GREATEST(reserved + $4, 0),
		    updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2 AND location_id = $3
	`

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, key.ProductID, key.WarehouseID, key.LocationID, delta)
	if err != nil {
		return fmt.Errorf("apply reserved delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock aggregate", key.ProductID)
	}

	return nil
}

// GetTurnover computes opening, period movement and closing per key.
func (r *Repo) GetTurnover(ctx context.Context, filter ledger.TurnoverFilter) ([]ledger.TurnoverRow, error) {
	args := []any{filter.From, filter.To}
	conditions := ""
	argIndex := 3

	if !id.IsNil(filter.WarehouseID) {
		conditions += fmt.Sprintf(" AND warehouse_id = $%d", argIndex)
		args = append(args, filter.WarehouseID)
		argIndex++
	}
	if !id.IsNil(filter.ProductID) {
		conditions += fmt.Sprintf(" AND product_id = $%d", argIndex)
		args = append(args, filter.ProductID)
	}

	sql := fmt.Sprintf(`
		SELECT product_id, warehouse_id, location_id,
			COALESCE(SUM(signed_quantity) FILTER (WHERE created_at < $1), 0) AS opening,
			COALESCE(SUM(signed_quantity) FILTER (WHERE created_at >= $1 AND created_at <= $2 AND signed_quantity > 0), 0) AS increase,
			COALESCE(-SUM(signed_quantity) FILTER (WHERE created_at >= $1 AND created_at <= $2 AND signed_quantity < 0), 0) AS decrease,
			COALESCE(SUM(signed_quantity) FILTER (WHERE created_at <= $2), 0) AS closing
		FROM ledger_entries
		WHERE TRUE%s
		GROUP BY product_id, warehouse_id, location_id
		ORDER BY product_id, warehouse_id, location_id
	`, conditions)

	querier := r.txManager.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query turnover: %w", err)
	}
	defer rows.Close()

	var out []ledger.TurnoverRow
	for rows.Next() {
		var row ledger.TurnoverRow
		var opening, increase, decrease, closing int64
		if err := rows.Scan(
			&row.ProductID, &row.WarehouseID, &row.LocationID,
			&opening, &increase, &decrease, &closing,
		); err != nil {
			return nil, fmt.Errorf("scan turnover: %w", err)
		}
		row.Opening = types.NewQuantityFromInt64Scaled(opening)
		row.Increase = types.NewQuantityFromInt64Scaled(increase)
		row.Decrease = types.NewQuantityFromInt64Scaled(decrease)
		row.Closing = types.NewQuantityFromInt64Scaled(closing)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turnover: %w", err)
	}

	return out, nil
}
