package ledger

import (
	"context"
	"time"

	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// Repository defines persistence operations for the stock ledger.
// Implementations compose with the ambient transaction from context; the
// repository itself never opens transactions.
type Repository interface {
	// InsertEntry appends an immutable ledger entry and applies its signed
	// quantity to the materialized aggregate for the entry's stock key.
	// The aggregate row is created lazily on first movement. For positive
	// entries with a non-zero unit cost the weighted average cost is updated.
	InsertEntry(ctx context.Context, entry entity.LedgerEntry) error

	// LockAggregate returns the aggregate for the key with a row lock held
	// for the rest of the transaction, creating a zero row if none exists.
	LockAggregate(ctx context.Context, key entity.StockKey) (entity.StockAggregate, error)

	// GetAggregate returns the aggregate for the key without locking.
	// Returns apperror NotFound if no movement has ever touched the key.
	GetAggregate(ctx context.Context, key entity.StockKey) (entity.StockAggregate, error)

	// ListAggregates returns aggregates matching the filter.
	ListAggregates(ctx context.Context, filter AggregateFilter) ([]entity.StockAggregate, error)

	// NetAppliedByDocument sums signed quantities per stock key over all
	// entries correlated to the document, across every operation tag.
	// Keys whose net is zero are omitted.
	NetAppliedByDocument(ctx context.Context, ref entity.DocumentRef) (map[entity.StockKey]types.Quantity, error)

	// ListEntriesByDocument returns all entries for the document in
	// insertion order.
	ListEntriesByDocument(ctx context.Context, ref entity.DocumentRef) ([]entity.LedgerEntry, error)

	// ListEntriesByProduct returns entries for the product matching the
	// filter, newest first.
	ListEntriesByProduct(ctx context.Context, productID id.ID, filter EntryFilter) ([]entity.LedgerEntry, error)

	// ApplyReservedDelta adjusts the reserved quantity on an aggregate.
	// Fails with NotFound if the aggregate row does not exist.
	ApplyReservedDelta(ctx context.Context, key entity.StockKey, delta types.Quantity) error

	// GetTurnover computes opening balance, period increases/decreases and
	// closing balance per stock key for a reporting period.
	GetTurnover(ctx context.Context, filter TurnoverFilter) ([]TurnoverRow, error)
}

// AggregateFilter narrows aggregate listings.
type AggregateFilter struct {
	WarehouseID id.ID
	ProductID   id.ID

	// ExcludeZero drops keys whose on-hand and reserved are both zero
	ExcludeZero bool

	Limit  int
	Offset int
}

// EntryFilter narrows movement history listings.
type EntryFilter struct {
	WarehouseID id.ID
	From        time.Time
	To          time.Time

	Limit  int
	Offset int
}

// TurnoverFilter bounds a turnover report.
type TurnoverFilter struct {
	WarehouseID id.ID
	ProductID   id.ID
	From        time.Time
	To          time.Time
}

// TurnoverRow is one line of a turnover report.
type TurnoverRow struct {
	entity.StockKey

	Opening  types.Quantity `db:"opening" json:"opening"`
	Increase types.Quantity `db:"increase" json:"increase"`
	Decrease types.Quantity `db:"decrease" json:"decrease"`
	Closing  types.Quantity `db:"closing" json:"closing"`
}
