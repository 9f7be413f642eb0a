package ledger

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/core/types"
	"procura/pkg/logger"
)

// AdjustmentDirection chooses which side of the ledger an adjustment hits.
type AdjustmentDirection string

const (
	AdjustmentIn  AdjustmentDirection = "in"
	AdjustmentOut AdjustmentDirection = "out"
)

// AdjustmentRequest describes a manual stock correction or an opening
// balance load. Quantity is always a positive magnitude.
type AdjustmentRequest struct {
	Key      entity.StockKey
	Quantity types.Quantity

	Direction AdjustmentDirection

	// UnitCost feeds average cost maintenance on inbound adjustments
	UnitCost types.Money

	// OpeningBalance marks an initial stock load; must be inbound
	OpeningBalance bool

	Reason string
}

// AdjustmentService records manual ledger movements that have no source
// document. Each adjustment gets its own numbered document reference so the
// ledger trail stays queryable by document like every other movement.
type AdjustmentService struct {
	ledger    *Service
	numerator numerator.Generator
	txManager tx.Manager
}

// NewAdjustmentService creates a new adjustment service.
func NewAdjustmentService(ledgerSvc *Service, gen numerator.Generator, txManager tx.Manager) *AdjustmentService {
	return &AdjustmentService{
		ledger:    ledgerSvc,
		numerator: gen,
		txManager: txManager,
	}
}

// Record writes one adjustment entry in its own transaction.
func (s *AdjustmentService) Record(ctx context.Context, req AdjustmentRequest) (*entity.LedgerEntry, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewInvalidQuantity("adjustment quantity must be positive").
			WithDetail("quantity", req.Quantity.String())
	}

	switch req.Direction {
	case AdjustmentIn, AdjustmentOut:
	case "":
		req.Direction = AdjustmentIn
	default:
		return nil, apperror.NewValidation("direction must be \"in\" or \"out\"")
	}

	if req.OpeningBalance && req.Direction != AdjustmentIn {
		return nil, apperror.NewValidation("opening balance must be an inbound adjustment")
	}

	txType := entity.TransactionAdjustment
	if req.OpeningBalance {
		txType = entity.TransactionOpeningBalance
	}

	var entry *entity.LedgerEntry
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ADJ"), numerator.DefaultOptions(), time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}

		m := Movement{
			Key:      req.Key,
			Quantity: req.Quantity,
			Type:     txType,
			Document: entity.DocumentRef{
				Type:   "stock_adjustment",
				ID:     id.New(),
				Number: number,
			},
			Tag:      entity.TagOriginal,
			UnitCost: req.UnitCost,
		}

		if req.Direction == AdjustmentOut {
			entry, err = s.ledger.Decrease(ctx, m)
		} else {
			entry, err = s.ledger.Increase(ctx, m)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"number", entry.DocumentRef.Number,
		"product_id", req.Key.ProductID,
		"warehouse_id", req.Key.WarehouseID,
		"direction", req.Direction,
		"quantity", req.Quantity,
		"opening_balance", req.OpeningBalance,
		"reason", req.Reason,
	)

	return entry, nil
}
