// Package ledgertest provides an in-memory ledger repository for unit tests.
// It mirrors the balance maintenance the Postgres repository performs so
// service-level tests can assert ledger invariants without a database.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
)

// Repository is an in-memory ledger.Repository.
type Repository struct {
	mu         sync.Mutex
	entries    []entity.LedgerEntry
	aggregates map[entity.StockKey]entity.StockAggregate
}

var _ ledger.Repository = (*Repository)(nil)

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		aggregates: make(map[entity.StockKey]entity.StockAggregate),
	}
}

// InsertEntry appends the entry and applies it to the aggregate.
func (r *Repository) InsertEntry(_ context.Context, entry entity.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)

	agg := r.aggregateLocked(entry.StockKey)

	// Weighted average cost is maintained on priced increases only.
	if entry.SignedQuantity.IsPositive() && !entry.UnitCost.IsZero() {
		newOnHand := agg.OnHand + entry.SignedQuantity
		if newOnHand.IsPositive() {
			existing := agg.AverageCost.Mul(agg.OnHand.Decimal())
			incoming := entry.UnitCost.Mul(entry.SignedQuantity.Decimal())
			agg.AverageCost = existing.Add(incoming).Div(newOnHand.Decimal())
		}
	}

	agg.OnHand += entry.SignedQuantity
	agg.LastMovementAt = entry.CreatedAt
	agg.UpdatedAt = time.Now().UTC()
	r.aggregates[entry.StockKey] = agg

	return nil
}

// LockAggregate returns the aggregate, creating a zero row if absent.
// Row locking is a no-op in memory.
func (r *Repository) LockAggregate(_ context.Context, key entity.StockKey) (entity.StockAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg := r.aggregateLocked(key)
	r.aggregates[key] = agg
	return agg, nil
}

// GetAggregate returns the aggregate or NotFound.
func (r *Repository) GetAggregate(_ context.Context, key entity.StockKey) (entity.StockAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg, ok := r.aggregates[key]
	if !ok {
		return entity.StockAggregate{}, apperror.NewNotFound("stock aggregate", key.ProductID)
	}
	return agg, nil
}

// ListAggregates returns aggregates matching the filter, ordered by product.
func (r *Repository) ListAggregates(_ context.Context, filter ledger.AggregateFilter) ([]entity.StockAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.StockAggregate
	for _, agg := range r.aggregates {
		if !id.IsNil(filter.WarehouseID) && agg.WarehouseID != filter.WarehouseID {
			continue
		}
		if !id.IsNil(filter.ProductID) && agg.ProductID != filter.ProductID {
			continue
		}
		if filter.ExcludeZero && agg.OnHand.IsZero() && agg.Reserved.IsZero() {
			continue
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}

// NetAppliedByDocument sums signed quantities per key for the document.
func (r *Repository) NetAppliedByDocument(_ context.Context, ref entity.DocumentRef) (map[entity.StockKey]types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	net := make(map[entity.StockKey]types.Quantity)
	for _, e := range r.entries {
		if e.DocumentRef.Type != ref.Type || e.DocumentRef.ID != ref.ID {
			continue
		}
		net[e.StockKey] += e.SignedQuantity
	}
	for k, v := range net {
		if v.IsZero() {
			delete(net, k)
		}
	}
	return net, nil
}

// ListEntriesByDocument returns entries for the document in insertion order.
func (r *Repository) ListEntriesByDocument(_ context.Context, ref entity.DocumentRef) ([]entity.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.LedgerEntry
	for _, e := range r.entries {
		if e.DocumentRef.Type == ref.Type && e.DocumentRef.ID == ref.ID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListEntriesByProduct returns entries for the product, newest first.
func (r *Repository) ListEntriesByProduct(_ context.Context, productID id.ID, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.LedgerEntry
	for _, e := range r.entries {
		if e.ProductID != productID {
			continue
		}
		if !id.IsNil(filter.WarehouseID) && e.WarehouseID != filter.WarehouseID {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ApplyReservedDelta adjusts reserved quantity on an existing aggregate.
func (r *Repository) ApplyReservedDelta(_ context.Context, key entity.StockKey, delta types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg, ok := r.aggregates[key]
	if !ok {
		return apperror.NewNotFound("stock aggregate", key.ProductID)
	}
	agg.Reserved += delta
	if agg.Reserved.IsNegative() {
		agg.Reserved = 0
	}
	agg.UpdatedAt = time.Now().UTC()
	r.aggregates[key] = agg
	return nil
}

// GetTurnover computes per-key turnover from recorded entries.
func (r *Repository) GetTurnover(_ context.Context, filter ledger.TurnoverFilter) ([]ledger.TurnoverRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make(map[entity.StockKey]*ledger.TurnoverRow)
	for _, e := range r.entries {
		if !id.IsNil(filter.WarehouseID) && e.WarehouseID != filter.WarehouseID {
			continue
		}
		if !id.IsNil(filter.ProductID) && e.ProductID != filter.ProductID {
			continue
		}

		row, ok := rows[e.StockKey]
		if !ok {
			row = &ledger.TurnoverRow{StockKey: e.StockKey}
			rows[e.StockKey] = row
		}

		switch {
		case e.CreatedAt.Before(filter.From):
			row.Opening += e.SignedQuantity
		case !filter.To.IsZero() && e.CreatedAt.After(filter.To):
			// outside period
		case e.SignedQuantity.IsPositive():
			row.Increase += e.SignedQuantity
		default:
			row.Decrease += e.SignedQuantity.Neg()
		}
	}

	var out []ledger.TurnoverRow
	for _, row := range rows {
		row.Closing = row.Opening + row.Increase - row.Decrease
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}

// Entries returns a copy of all recorded entries, for assertions.
func (r *Repository) Entries() []entity.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entity.LedgerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Repository) aggregateLocked(key entity.StockKey) entity.StockAggregate {
	if agg, ok := r.aggregates[key]; ok {
		return agg
	}
	now := time.Now().UTC()
	return entity.StockAggregate{
		StockKey:    key,
		AverageCost: types.ZeroMoney(),
		UpdatedAt:   now,
	}
}
