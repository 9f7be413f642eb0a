package receiving

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
	"procura/internal/domain"
	"procura/internal/domain/audit"
	"procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/event"
	"procura/internal/domain/reconcile"
	"procura/pkg/logger"
)

// NumeratorStrategy for receiving numbering. Receivings hit the ledger,
// so numbers stay gapless.
const NumeratorStrategy = numerator.StrategyStrict

// Service provides business operations for receiving documents.
type Service struct {
	repo      Repository
	engine    *reconcile.Engine
	returned  ReturnedQuantitySource
	orders    OrderSync
	numerator numerator.Generator
	txManager tx.Manager
	events    event.Publisher
	audit     audit.Recorder
}

// NewService creates a new receiving service.
func NewService(
	repo Repository,
	engine *reconcile.Engine,
	returned ReturnedQuantitySource,
	orders OrderSync,
	gen numerator.Generator,
	txManager tx.Manager,
	events event.Publisher,
	auditRec audit.Recorder,
) *Service {
	if events == nil {
		events = event.NopPublisher{}
	}
	if auditRec == nil {
		auditRec = audit.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		engine:    engine,
		returned:  returned,
		orders:    orders,
		numerator: gen,
		txManager: txManager,
		events:    events,
		audit:     auditRec,
	}
}

// Create saves a new unconfirmed receiving.
func (s *Service) Create(ctx context.Context, doc *Receiving) error {
	doc.Confirmed = false
	doc.ConfirmedAt = nil
	doc.RecalculateTotals()
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		cfg := numerator.DefaultConfig("RCV")
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "receiving created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a receiving with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Receiving, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// Confirm records the receiving's stock effect in the ledger.
func (s *Service) Confirm(ctx context.Context, docID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Confirmed {
			return apperror.NewDocumentConfirmed(docID.String())
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		// ownApplied is zero on first confirm: the order's received sums
		// cannot include an unconfirmed document.
		if err := s.checkOrderedBounds(ctx, doc, nil); err != nil {
			return err
		}

		if _, err := s.engine.Reconcile(ctx, doc.Ref(), doc.TargetLines(), reconcile.Options{
			Type:      entity.TransactionPurchase,
			Tag:       entity.TagOriginal,
			Direction: +1,
		}); err != nil {
			return err
		}

		doc.MarkConfirmed()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		if err := s.syncOrder(ctx, doc.OrderID); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: DocumentType, EntityID: doc.ID, Action: "confirm", Snapshot: doc,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "Receiving",
			AggregateID:   doc.ID,
			Type:          "receiving.confirmed",
			Payload:       doc,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "receiving confirmed", "id", docID)
	return nil
}

// Update saves changes to a receiving. Unconfirmed documents are plain
// saves; confirmed documents additionally reconcile the ledger so the
// applied stock effect follows the new lines.
func (s *Service) Update(ctx context.Context, doc *Receiving) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.GetByID(ctx, doc.ID)
		if err != nil {
			return err
		}

		// Confirmation state is not editable through saves.
		doc.Confirmed = current.Confirmed
		doc.ConfirmedAt = current.ConfirmedAt
		doc.Number = current.Number

		doc.RecalculateTotals()
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		if current.Confirmed {
			if err := checkReturnedBounds(current, doc); err != nil {
				return err
			}
			// The order's sums include this document's confirmed lines;
			// exclude them so only other receivings constrain the edit.
			// When the edit retargets another order, nothing of ours is
			// in that order's sums yet.
			ownApplied := current.QuantityByOrderLine()
			if doc.OrderID != current.OrderID {
				ownApplied = nil
			}
			if err := s.checkOrderedBounds(ctx, doc, ownApplied); err != nil {
				return err
			}
		}

		// Returned sums belong to the return documents, not the caller;
		// surviving lines keep theirs across the save.
		carryReturnedQuantities(current, doc)

		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		if !current.Confirmed {
			return nil
		}

		if _, err := s.engine.Reconcile(ctx, doc.Ref(), doc.TargetLines(), reconcile.Options{
			Type:      entity.TransactionPurchase,
			Tag:       entity.TagAdjustment,
			Direction: +1,
		}); err != nil {
			return err
		}

		// An edit may retarget the receiving to a different order; both
		// sides get their sums recomputed.
		if err := s.syncOrder(ctx, current.OrderID); err != nil {
			return err
		}
		if doc.OrderID != current.OrderID {
			if err := s.syncOrder(ctx, doc.OrderID); err != nil {
				return err
			}
		}

		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: DocumentType, EntityID: doc.ID, Action: "adjust", Snapshot: doc,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "Receiving",
			AggregateID:   doc.ID,
			Type:          "receiving.adjusted",
			Payload:       doc,
		})
	})
}

// Delete soft-deletes a receiving. A confirmed receiving first gets its
// entire ledger effect reversed. Blocked while confirmed returns
// reference any line: those returns must be deleted first.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}

		if doc.HasReturns() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "receiving has confirmed returns").
				WithDetail("document_id", docID.String())
		}

		if doc.Confirmed {
			if _, err := s.engine.Reverse(ctx, doc.Ref(), entity.TransactionPurchase); err != nil {
				return err
			}
		}

		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		if err := s.syncOrder(ctx, doc.OrderID); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: DocumentType, EntityID: docID, Action: "delete", Snapshot: doc,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "Receiving",
			AggregateID:   docID,
			Type:          "receiving.deleted",
			Payload:       map[string]any{"number": doc.Number},
		})
	})
}

// RefreshReturnedQuantities re-sums per-line returned quantities from
// confirmed returns and persists them. Called by the return service after
// every confirm, edit and delete.
func (s *Service) RefreshReturnedQuantities(ctx context.Context, receivingID id.ID) error {
	returned, err := s.returned.SumReturnedByReceivingLine(ctx, receivingID)
	if err != nil {
		return fmt.Errorf("sum returned: %w", err)
	}

	if err := s.repo.SetLineReturnedQuantities(ctx, receivingID, returned); err != nil {
		return fmt.Errorf("set returned quantities: %w", err)
	}

	logger.Debug(ctx, "receiving returned quantities refreshed",
		"receiving_id", receivingID, "lines", len(returned))
	return nil
}

// List retrieves receivings with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Receiving], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) syncOrder(ctx context.Context, orderID id.ID) error {
	if id.IsNil(orderID) || s.orders == nil {
		return nil
	}
	if err := s.orders.RefreshReceivedQuantities(ctx, orderID); err != nil {
		return fmt.Errorf("refresh order %s: %w", orderID, err)
	}
	return nil
}

// carryReturnedQuantities copies returned sums from stored lines onto the
// incoming ones, matched by line ID.
func carryReturnedQuantities(current, updated *Receiving) {
	stored := make(map[id.ID]Line, len(current.Lines))
	for _, line := range current.Lines {
		stored[line.LineID] = line
	}
	for i := range updated.Lines {
		if prev, ok := stored[updated.Lines[i].LineID]; ok {
			updated.Lines[i].ReturnedQuantity = prev.ReturnedQuantity
		}
	}
}

// checkOrderedBounds verifies every line that references an order line
// fits within what that line still has on order. ownApplied carries this
// document's already-confirmed per-line sums so they don't count against
// the bound on edits.
func (s *Service) checkOrderedBounds(ctx context.Context, doc *Receiving, ownApplied map[id.ID]types.Quantity) error {
	if id.IsNil(doc.OrderID) || s.orders == nil {
		return nil
	}

	order, err := s.orders.GetByID(ctx, doc.OrderID)
	if err != nil {
		return err
	}
	if order.DeletionMark {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "order is deleted").
			WithDetail("order_id", doc.OrderID.String())
	}
	if order.Status == purchase_order.StatusDraft || order.Status == purchase_order.StatusRejected {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "order is not approved").
			WithDetail("order_id", doc.OrderID.String()).
			WithDetail("status", string(order.Status))
	}

	orderLines := make(map[id.ID]purchase_order.Line, len(order.Lines))
	for _, line := range order.Lines {
		orderLines[line.LineID] = line
	}

	for orderLineID, requested := range doc.QuantityByOrderLine() {
		orderLine, ok := orderLines[orderLineID]
		if !ok {
			return apperror.NewNotFound("order line", orderLineID)
		}

		receivedByOthers := orderLine.ReceivedQuantity - ownApplied[orderLineID]
		if receivedByOthers.IsNegative() {
			receivedByOthers = 0
		}
		remaining := orderLine.Quantity - receivedByOthers

		if requested > remaining {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "receipt exceeds ordered quantity").
				WithDetail("order_line_id", orderLineID.String()).
				WithDetail("requested", requested.String()).
				WithDetail("receivable", remaining.String())
		}
	}

	return nil
}

// checkReturnedBounds rejects edits that would shrink a line below the
// quantity already returned against it, or drop such a line entirely.
func checkReturnedBounds(current, updated *Receiving) error {
	newByID := make(map[id.ID]Line, len(updated.Lines))
	for _, line := range updated.Lines {
		newByID[line.LineID] = line
	}

	for _, line := range current.Lines {
		if !line.ReturnedQuantity.IsPositive() {
			continue
		}
		newLine, ok := newByID[line.LineID]
		if !ok {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "cannot remove a line with confirmed returns").
				WithDetail("line_id", line.LineID.String()).
				WithDetail("returned_quantity", line.ReturnedQuantity.String())
		}
		if newLine.Quantity < line.ReturnedQuantity {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "line quantity below returned quantity").
				WithDetail("line_id", line.LineID.String()).
				WithDetail("quantity", newLine.Quantity.String()).
				WithDetail("returned_quantity", line.ReturnedQuantity.String())
		}
	}
	return nil
}
