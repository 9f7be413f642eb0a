package purchase_order

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/tx"
	"procura/internal/domain"
	"procura/internal/domain/event"
	"procura/pkg/logger"
)

// NumeratorStrategy for order numbering. Orders tolerate gaps.
const NumeratorStrategy = numerator.StrategyCached

// Service provides business operations for purchase orders.
type Service struct {
	repo      Repository
	received  ReceivedQuantitySource
	numerator numerator.Generator
	txManager tx.Manager
	events    event.Publisher
}

// NewService creates a new purchase order service.
func NewService(
	repo Repository,
	received ReceivedQuantitySource,
	gen numerator.Generator,
	txManager tx.Manager,
	events event.Publisher,
) *Service {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		received:  received,
		numerator: gen,
		txManager: txManager,
		events:    events,
	}
}

// Create creates a draft purchase order.
func (s *Service) Create(ctx context.Context, doc *PurchaseOrder) error {
	if doc.Status == "" {
		doc.Status = StatusDraft
	}
	if doc.Status != StatusDraft {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "new orders start as drafts").
			WithDetail("status", string(doc.Status))
	}

	doc.RecalculateTotals()
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		cfg := numerator.DefaultConfig("PO")
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
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.events.Publish(ctx, event.Event{
			AggregateType: "PurchaseOrder",
			AggregateID:   doc.ID,
			Type:          "purchase_order.created",
			Payload:       doc,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase order created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a purchase order with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*PurchaseOrder, error) {
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

// Update saves changes to a draft order. Orders past draft are immutable
// except through status transitions.
func (s *Service) Update(ctx context.Context, doc *PurchaseOrder) error {
	current, err := s.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	if current.Status != StatusDraft {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only draft orders can be edited").
			WithDetail("status", string(current.Status))
	}

	doc.Status = StatusDraft
	doc.RecalculateTotals()
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	doc.Touch()

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
}

// Approve accepts a draft order, recording who approved it and when.
func (s *Service) Approve(ctx context.Context, docID id.ID, approvedBy string) error {
	return s.transition(ctx, docID, StatusApproved, "purchase_order.approved", func(doc *PurchaseOrder) {
		now := time.Now().UTC()
		doc.ApprovedBy = approvedBy
		doc.ApprovedAt = &now
	})
}

// Reject declines an order. Drafts are rejected outright; an approved
// order may still be rejected as long as nothing has been received
// against it, which also clears the approval.
func (s *Service) Reject(ctx context.Context, docID id.ID, reason string) error {
	return s.transition(ctx, docID, StatusRejected, "purchase_order.rejected", func(doc *PurchaseOrder) {
		doc.ApprovedBy = ""
		doc.ApprovedAt = nil
		doc.RejectionReason = reason
	})
}

// Close finishes an approved order.
func (s *Service) Close(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusClosed, "purchase_order.closed", nil)
}

func (s *Service) transition(ctx context.Context, docID id.ID, to Status, eventType string, mutate func(*PurchaseOrder)) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.canTransition(to); err != nil {
			return err
		}
		if to == StatusRejected && doc.HasReceipts() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "order has confirmed receivings").
				WithDetail("received_quantity", doc.TotalReceived().String())
		}

		doc.Status = to
		if mutate != nil {
			mutate(doc)
		}
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "PurchaseOrder",
			AggregateID:   doc.ID,
			Type:          eventType,
			Payload:       map[string]any{"status": to, "number": doc.Number},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase order status changed", "id", docID, "status", to)
	return nil
}

// Delete soft-deletes an order. Blocked once any quantity has been
// received: the receivings must be deleted first, which resets the
// received sums to zero.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.GetByID(ctx, docID)
		if err != nil {
			return err
		}

		if doc.HasReceipts() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "order has confirmed receivings").
				WithDetail("received_quantity", doc.TotalReceived().String())
		}

		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		return s.events.Publish(ctx, event.Event{
			AggregateType: "PurchaseOrder",
			AggregateID:   docID,
			Type:          "purchase_order.deleted",
			Payload:       map[string]any{"number": doc.Number},
		})
	})
}

// RefreshReceivedQuantities re-sums per-line received quantities from
// confirmed receivings and persists the result. Called by the receiving
// service after every confirm, edit and delete that touches this order.
// An order whose every line is fully received closes on its own.
func (s *Service) RefreshReceivedQuantities(ctx context.Context, orderID id.ID) error {
	received, err := s.received.SumReceivedByOrderLine(ctx, orderID)
	if err != nil {
		return fmt.Errorf("sum received: %w", err)
	}

	if err := s.repo.SetLineReceivedQuantities(ctx, orderID, received); err != nil {
		return fmt.Errorf("set received quantities: %w", err)
	}

	logger.Debug(ctx, "order received quantities refreshed",
		"order_id", orderID, "lines", len(received))

	doc, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if doc.Status != StatusApproved || !doc.IsFullyReceived() {
		return nil
	}

	doc.Status = StatusClosed
	doc.Touch()
	if err := s.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if err := s.events.Publish(ctx, event.Event{
		AggregateType: "PurchaseOrder",
		AggregateID:   doc.ID,
		Type:          "purchase_order.closed",
		Payload:       map[string]any{"status": StatusClosed, "number": doc.Number},
	}); err != nil {
		return err
	}

	logger.Info(ctx, "purchase order fully received and closed",
		"id", doc.ID, "number", doc.Number)
	return nil
}

// List retrieves purchase orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error) {
	return s.repo.List(ctx, filter)
}
