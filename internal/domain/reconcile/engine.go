// Package reconcile implements differential reconciliation between a
// document's desired stock effect and what the ledger has already applied
// for it. Edits and deletes of confirmed documents never rewrite history:
// the engine computes per-key deltas and appends compensating entries only
// where the target differs from the applied state.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
	"procura/pkg/logger"
)

// TargetLine is one line of a document's desired effect on stock.
// Lines with the same stock key are summed before diffing.
type TargetLine struct {
	Key      entity.StockKey
	Quantity types.Quantity
	UnitCost types.Money
	Batch    entity.BatchInfo
}

// Options control how deltas are written to the ledger.
type Options struct {
	// Type classifies the resulting entries
	Type entity.TransactionType

	// Tag marks which lifecycle phase produced the entries
	Tag entity.OperationTag

	// Compensating lets decreases drive balances below zero.
	// Set for document deletion reversals only.
	Compensating bool

	// Direction is the sign of the document's natural effect: +1 for
	// documents that add stock (receivings), -1 for documents that
	// remove it (returns).
	Direction int
}

// Result summarizes one reconciliation run.
type Result struct {
	// Entries are the ledger entries written, in deterministic key order
	Entries []entity.LedgerEntry

	// Unchanged counts keys whose applied state already matched the target
	Unchanged int
}

// Engine diffs target document lines against the ledger's applied state.
type Engine struct {
	ledger *ledger.Service
}

// NewEngine creates a reconciliation engine over the ledger service.
func NewEngine(ledgerSvc *ledger.Service) *Engine {
	return &Engine{ledger: ledgerSvc}
}

// Reconcile brings the ledger's net applied state for the document to the
// target. Keys present in the target but not yet applied get new entries;
// keys applied but absent from the target get compensating entries; keys
// where both sides already agree are left untouched, which makes re-running
// with an unchanged target a no-op.
//
// Must be called inside a transaction; a failure on any key aborts the
// whole run.
func (e *Engine) Reconcile(ctx context.Context, ref entity.DocumentRef, target []TargetLine, opts Options) (Result, error) {
	if ref.IsZero() {
		return Result{}, apperror.NewValidation("document reference is required")
	}
	direction, err := normalizeDirection(opts.Direction)
	if err != nil {
		return Result{}, err
	}

	desired := make(map[entity.StockKey]types.Quantity, len(target))
	costTotals := make(map[entity.StockKey]types.Money, len(target))
	batches := make(map[entity.StockKey]entity.BatchInfo, len(target))
	for i, line := range target {
		if line.Quantity.IsNegative() {
			return Result{}, apperror.NewInvalidQuantity(fmt.Sprintf("target line %d: quantity must not be negative", i))
		}
		desired[line.Key] += line.Quantity
		costTotals[line.Key] = costTotals[line.Key].Add(line.UnitCost.Mul(line.Quantity.Decimal()))
		batches[line.Key] = line.Batch
	}
	// Lines folded into one key carry a quantity-weighted unit cost.
	costs := make(map[entity.StockKey]types.Money, len(costTotals))
	for k, q := range desired {
		if q.IsPositive() {
			costs[k] = costTotals[k].Div(q.Decimal())
		}
	}
	// Apply document direction: a return's target of 20 means net -20.
	for k, q := range desired {
		desired[k] = types.Quantity(int64(q) * int64(direction))
	}

	applied, err := e.ledger.NetApplied(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("net applied: %w", err)
	}

	keys := unionKeys(desired, applied)

	var res Result
	for _, key := range keys {
		delta := desired[key] - applied[key]
		if delta.IsZero() {
			res.Unchanged++
			continue
		}

		m := ledger.Movement{
			Key:          key,
			Type:         opts.Type,
			Document:     ref,
			Tag:          opts.Tag,
			Compensating: opts.Compensating,
			Batch:        batches[key],
		}

		var entry *entity.LedgerEntry
		if delta.IsPositive() {
			m.Quantity = delta
			m.UnitCost = costs[key]
			entry, err = e.ledger.Increase(ctx, m)
		} else {
			m.Quantity = delta.Neg()
			entry, err = e.ledger.Decrease(ctx, m)
		}
		if err != nil {
			return Result{}, fmt.Errorf("reconcile %s/%s: %w", key.ProductID, key.WarehouseID, err)
		}
		res.Entries = append(res.Entries, *entry)
	}

	logger.Info(ctx, "document reconciled",
		"document_type", ref.Type,
		"document_id", ref.ID,
		"op_tag", opts.Tag,
		"entries", len(res.Entries),
		"unchanged", res.Unchanged,
	)

	return res, nil
}

// Reverse cancels the document's entire applied effect. The target is
// empty, so every applied key receives a compensating entry of the
// opposite sign. Reversals always bypass the non-negative floor: goods
// already consumed downstream cannot block an accounting correction.
func (e *Engine) Reverse(ctx context.Context, ref entity.DocumentRef, txType entity.TransactionType) (Result, error) {
	return e.Reconcile(ctx, ref, nil, Options{
		Type:         txType,
		Tag:          entity.TagReversal,
		Compensating: true,
		Direction:    +1,
	})
}

func normalizeDirection(d int) (int, error) {
	switch d {
	case 0, +1:
		return +1, nil
	case -1:
		return -1, nil
	default:
		return 0, apperror.NewValidation("direction must be +1 or -1")
	}
}

// unionKeys returns all keys from both maps in deterministic order.
func unionKeys(a, b map[entity.StockKey]types.Quantity) []entity.StockKey {
	seen := make(map[entity.StockKey]struct{}, len(a)+len(b))
	keys := make([]entity.StockKey, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID.String() < keys[j].ProductID.String()
		}
		if keys[i].WarehouseID != keys[j].WarehouseID {
			return keys[i].WarehouseID.String() < keys[j].WarehouseID.String()
		}
		return keys[i].LocationID.String() < keys[j].LocationID.String()
	})
	return keys
}
