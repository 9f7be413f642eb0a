// Package ledger provides the append-only stock ledger service.
package ledger

import (
	"context"
	"fmt"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/pkg/logger"
)

// Movement describes one requested stock movement. Quantity is always a
// positive magnitude; direction is chosen by calling Increase or Decrease.
type Movement struct {
	Key      entity.StockKey
	Quantity types.Quantity
	Type     entity.TransactionType
	Document entity.DocumentRef
	Tag      entity.OperationTag

	// UnitCost is consumed by increases for average cost maintenance
	UnitCost types.Money

	Batch entity.BatchInfo

	// Compensating marks reversal movements that must succeed even when
	// they drive the balance below zero. Only document deletion reversals
	// set this; ordinary decreases always respect the non-negative floor.
	Compensating bool
}

// Service provides business operations for the stock ledger.
// Transactions are managed by the caller; every method composes with the
// ambient transaction from context.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Increase appends a positive ledger entry and raises the on-hand balance.
func (s *Service) Increase(ctx context.Context, m Movement) (*entity.LedgerEntry, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}

	// Lock keeps concurrent movements on the same key serialized.
	if _, err := s.repo.LockAggregate(ctx, m.Key); err != nil {
		return nil, fmt.Errorf("lock aggregate: %w", err)
	}

	entry := entity.NewLedgerEntry(m.Key, m.Quantity, m.Type, m.Document, m.Tag, m.UnitCost, m.Batch)
	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	logger.Debug(ctx, "stock increased",
		"product_id", m.Key.ProductID,
		"warehouse_id", m.Key.WarehouseID,
		"quantity", m.Quantity,
		"document_type", m.Document.Type,
		"document_id", m.Document.ID,
		"op_tag", m.Tag,
	)

	return &entry, nil
}

// Decrease appends a negative ledger entry and lowers the on-hand balance.
// Unless the movement is compensating, the decrease must not drive the
// balance below zero.
func (s *Service) Decrease(ctx context.Context, m Movement) (*entity.LedgerEntry, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}

	agg, err := s.repo.LockAggregate(ctx, m.Key)
	if err != nil {
		return nil, fmt.Errorf("lock aggregate: %w", err)
	}

	if !m.Compensating && agg.OnHand < m.Quantity {
		return nil, apperror.NewInsufficientStock(
			m.Key.ProductID.String(),
			m.Quantity.Float64(),
			agg.OnHand.Float64(),
		)
	}

	// Dipping into reserved stock is allowed but worth flagging: an active
	// reservation may no longer be coverable.
	if remaining := agg.OnHand - m.Quantity; remaining < agg.Reserved {
		logger.Warn(ctx, "decrease leaves on-hand below reserved",
			"product_id", m.Key.ProductID,
			"warehouse_id", m.Key.WarehouseID,
			"on_hand_after", remaining,
			"reserved", agg.Reserved,
		)
	}

	entry := entity.NewLedgerEntry(m.Key, m.Quantity.Neg(), m.Type, m.Document, m.Tag, types.ZeroMoney(), m.Batch)
	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	logger.Debug(ctx, "stock decreased",
		"product_id", m.Key.ProductID,
		"warehouse_id", m.Key.WarehouseID,
		"quantity", m.Quantity,
		"document_type", m.Document.Type,
		"document_id", m.Document.ID,
		"op_tag", m.Tag,
		"compensating", m.Compensating,
	)

	return &entry, nil
}

// NetApplied returns the net quantity this document currently contributes
// per stock key, summed over every entry correlated to it regardless of tag.
// This is the reconciliation baseline for edits and deletes.
func (s *Service) NetApplied(ctx context.Context, ref entity.DocumentRef) (map[entity.StockKey]types.Quantity, error) {
	if ref.IsZero() {
		return nil, apperror.NewValidation("document reference is required")
	}
	return s.repo.NetAppliedByDocument(ctx, ref)
}

// EntriesByDocument returns the full ledger trail of a document.
func (s *Service) EntriesByDocument(ctx context.Context, ref entity.DocumentRef) ([]entity.LedgerEntry, error) {
	return s.repo.ListEntriesByDocument(ctx, ref)
}

// GetAggregate returns the materialized balance for a stock key.
func (s *Service) GetAggregate(ctx context.Context, key entity.StockKey) (entity.StockAggregate, error) {
	return s.repo.GetAggregate(ctx, key)
}

// ListAggregates returns balances matching the filter.
func (s *Service) ListAggregates(ctx context.Context, filter AggregateFilter) ([]entity.StockAggregate, error) {
	return s.repo.ListAggregates(ctx, filter)
}

// LockAggregate exposes row-locked aggregate reads for services that must
// check-then-mutate within a transaction (reservations do this).
func (s *Service) LockAggregate(ctx context.Context, key entity.StockKey) (entity.StockAggregate, error) {
	return s.repo.LockAggregate(ctx, key)
}

// ApplyReservedDelta adjusts the reserved quantity on an aggregate.
// The delta never touches the ledger itself: reservations are bookkeeping
// on the aggregate, not movements.
func (s *Service) ApplyReservedDelta(ctx context.Context, key entity.StockKey, delta types.Quantity) error {
	if delta.IsZero() {
		return nil
	}
	return s.repo.ApplyReservedDelta(ctx, key, delta)
}

// GetMovementHistory returns the product's ledger entries matching the
// filter, newest first.
func (s *Service) GetMovementHistory(ctx context.Context, productID id.ID, filter EntryFilter) ([]entity.LedgerEntry, error) {
	if id.IsNil(productID) {
		return nil, apperror.NewValidation("product_id is required")
	}
	return s.repo.ListEntriesByProduct(ctx, productID, filter)
}

// GetProductAvailability returns total unreserved quantity across warehouses.
func (s *Service) GetProductAvailability(ctx context.Context, productID id.ID) (types.Quantity, error) {
	aggs, err := s.repo.ListAggregates(ctx, AggregateFilter{ProductID: productID})
	if err != nil {
		return 0, fmt.Errorf("list aggregates: %w", err)
	}

	var total types.Quantity
	for _, a := range aggs {
		total += a.Available()
	}
	return total, nil
}

// GetTurnover generates a turnover report for the period.
func (s *Service) GetTurnover(ctx context.Context, filter TurnoverFilter) ([]TurnoverRow, error) {
	return s.repo.GetTurnover(ctx, filter)
}

func validateMovement(m Movement) error {
	if !m.Quantity.IsPositive() {
		return apperror.NewInvalidQuantity("movement quantity must be positive").
			WithDetail("quantity", m.Quantity.String())
	}
	if id.IsNil(m.Key.ProductID) {
		return apperror.NewValidation("product_id is required")
	}
	if id.IsNil(m.Key.WarehouseID) {
		return apperror.NewValidation("warehouse_id is required")
	}
	if m.Document.IsZero() {
		return apperror.NewValidation("document reference is required")
	}
	if m.Type == "" {
		return apperror.NewValidation("transaction type is required")
	}
	if m.Tag == "" {
		return apperror.NewValidation("operation tag is required")
	}
	return nil
}
