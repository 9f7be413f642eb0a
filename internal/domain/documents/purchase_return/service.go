package purchase_return

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
	"procura/internal/domain/documents/receiving"
	"procura/internal/domain/event"
	"procura/internal/domain/reconcile"
	"procura/pkg/logger"
)

// NumeratorStrategy for return numbering. Returns hit the ledger, so
// numbers stay gapless.
const NumeratorStrategy = numerator.StrategyStrict

// Service provides business operations for purchase return documents.
type Service struct {
	repo       Repository
	engine     *reconcile.Engine
	receivings ReceivingSource
	numerator  numerator.Generator
	txManager  tx.Manager
	events     event.Publisher
	audit      audit.Recorder
}

// NewService creates a new purchase return service.
func NewService(
	repo Repository,
	engine *reconcile.Engine,
	receivings ReceivingSource,
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
		repo:       repo,
		engine:     engine,
		receivings: receivings,
		numerator:  gen,
		txManager:  txManager,
		events:     events,
		audit:      auditRec,
	}
}

// Create saves a new unconfirmed return.
func (s *Service) Create(ctx context.Context, doc *PurchaseReturn) error {
	doc.Confirmed = false
	doc.ConfirmedAt = nil
	doc.RecalculateTotals()
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	// The referenced receiving must exist and be confirmed even for a
	// draft: a return against nothing is meaningless.
	rcv, err := s.receivings.GetByID(ctx, doc.ReceivingID)
	if err != nil {
		return err
	}
	if !rcv.Confirmed {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "receiving is not confirmed").
			WithDetail("receiving_id", doc.ReceivingID.String())
	}

	if doc.Number == "" {
		cfg := numerator.DefaultConfig("RET")
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase return created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a return with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*PurchaseReturn, error) {
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

// Confirm records the return's stock effect in the ledger. Every line is
// bounded by what its receiving line still holds returnable; bounds are
// checked before any ledger write so a rejected confirm leaves no trace.
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

		// ownApplied is zero on first confirm: the receiving's returned
		// sums cannot include an unconfirmed document.
		if err := s.checkReturnableBounds(ctx, doc, nil); err != nil {
			return err
		}

		if _, err := s.engine.Reconcile(ctx, doc.Ref(), doc.TargetLines(), reconcile.Options{
			Type:      entity.TransactionReturn,
			Tag:       entity.TagOriginal,
			Direction: -1,
		}); err != nil {
			return err
		}

		doc.MarkConfirmed()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		if err := s.receivings.RefreshReturnedQuantities(ctx, doc.ReceivingID); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: DocumentType, EntityID: doc.ID, Action: "confirm", Snapshot: doc,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "PurchaseReturn",
			AggregateID:   doc.ID,
			Type:          "purchase_return.confirmed",
			Payload:       doc,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase return confirmed", "id", docID)
	return nil
}

// Update saves changes to a return. Confirmed returns reconcile the
// ledger to the new lines, with bounds re-checked against the receiving
// minus other documents' contributions.
func (s *Service) Update(ctx context.Context, doc *PurchaseReturn) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.GetByID(ctx, doc.ID)
		if err != nil {
			return err
		}

		doc.Confirmed = current.Confirmed
		doc.ConfirmedAt = current.ConfirmedAt
		doc.Number = current.Number

		// Retargeting a confirmed return to another receiving would
		// orphan its applied entries.
		if current.Confirmed && doc.ReceivingID != current.ReceivingID {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "confirmed return cannot change receiving").
				WithDetail("receiving_id", current.ReceivingID.String())
		}

		doc.RecalculateTotals()
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		if current.Confirmed {
			// The receiving's sums include this document's confirmed
			// lines; exclude them so only other returns constrain us.
			if err := s.checkReturnableBounds(ctx, doc, current.QuantityByReceivingLine()); err != nil {
				return err
			}
		}

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
			Type:      entity.TransactionReturn,
			Tag:       entity.TagAdjustment,
			Direction: -1,
		}); err != nil {
			return err
		}

		if err := s.receivings.RefreshReturnedQuantities(ctx, doc.ReceivingID); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: DocumentType, EntityID: doc.ID, Action: "adjust", Snapshot: doc,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "PurchaseReturn",
			AggregateID:   doc.ID,
			Type:          "purchase_return.adjusted",
			Payload:       doc,
		})
	})
}

// Delete soft-deletes a return. A confirmed return gets its ledger effect
// reversed, which puts the returned goods back on hand, and the
// receiving's returned sums drop accordingly.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}

		if doc.Confirmed {
			if _, err := s.engine.Reverse(ctx, doc.Ref(), entity.TransactionReturn); err != nil {
				return err
			}
		}

		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		if doc.Confirmed {
			if err := s.receivings.RefreshReturnedQuantities(ctx, doc.ReceivingID); err != nil {
				return err
			}
		}

		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: DocumentType, EntityID: docID, Action: "delete", Snapshot: doc,
		}); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "PurchaseReturn",
			AggregateID:   docID,
			Type:          "purchase_return.deleted",
			Payload:       map[string]any{"number": doc.Number},
		})
	})
}

// List retrieves purchase returns with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseReturn], error) {
	return s.repo.List(ctx, filter)
}

// checkReturnableBounds verifies every requested line quantity fits within
// what the receiving line still holds returnable. ownApplied carries this
// document's already-confirmed per-line sums so they don't count against
// the bound on edits.
func (s *Service) checkReturnableBounds(ctx context.Context, doc *PurchaseReturn, ownApplied map[id.ID]types.Quantity) error {
	rcv, err := s.receivings.GetByID(ctx, doc.ReceivingID)
	if err != nil {
		return err
	}
	if !rcv.Confirmed {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "receiving is not confirmed").
			WithDetail("receiving_id", doc.ReceivingID.String())
	}
	if rcv.DeletionMark {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "receiving is deleted").
			WithDetail("receiving_id", doc.ReceivingID.String())
	}

	rcvLines := make(map[id.ID]receiving.Line, len(rcv.Lines))
	for _, line := range rcv.Lines {
		rcvLines[line.LineID] = line
	}

	for rcvLineID, requested := range doc.QuantityByReceivingLine() {
		rcvLine, ok := rcvLines[rcvLineID]
		if !ok {
			return apperror.NewNotFound("receiving line", rcvLineID)
		}

		returnedByOthers := rcvLine.ReturnedQuantity - ownApplied[rcvLineID]
		if returnedByOthers.IsNegative() {
			returnedByOthers = 0
		}
		remaining := rcvLine.Quantity - returnedByOthers

		if requested > remaining {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "return exceeds returnable quantity").
				WithDetail("receiving_line_id", rcvLineID.String()).
				WithDetail("requested", requested.String()).
				WithDetail("returnable", remaining.String())
		}
	}

	return nil
}
