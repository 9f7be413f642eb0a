package reservation

import (
	"context"
	"fmt"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/tx"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
	"procura/pkg/logger"
)

// ReserveRequest describes a reservation attempt.
type ReserveRequest struct {
	Key       entity.StockKey
	Quantity  types.Quantity
	Reference string
	TTL       time.Duration // zero means no expiry
}

// Service provides reservation operations. Aggregate reserved-quantity
// bookkeeping goes through the ledger service so the stock aggregate has a
// single mutation path.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new reservation service.
func NewService(repo Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// Reserve holds quantity against the available (on-hand minus reserved)
// balance of a stock key. Fails with NotFound when the key has never had
// stock, and InsufficientAvailable when the unreserved balance is short.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	var expiresAt *time.Time
	if req.TTL > 0 {
		t := time.Now().UTC().Add(req.TTL)
		expiresAt = &t
	}

	res := NewReservation(req.Key, req.Quantity, req.Reference, expiresAt)
	if err := res.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// The aggregate row must already exist; reserving against a key
		// that never had stock is a lookup failure, not a shortage.
		if _, err := s.ledger.GetAggregate(ctx, req.Key); err != nil {
			return err
		}

		agg, err := s.ledger.LockAggregate(ctx, req.Key)
		if err != nil {
			return fmt.Errorf("lock aggregate: %w", err)
		}

		if agg.Available() < req.Quantity {
			return apperror.NewInsufficientAvailable(
				req.Key.ProductID.String(),
				req.Quantity.Float64(),
				agg.Available().Float64(),
			)
		}

		if err := s.repo.Create(ctx, res); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		return s.ledger.ApplyReservedDelta(ctx, req.Key, req.Quantity)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock reserved",
		"reservation_id", res.ID,
		"product_id", req.Key.ProductID,
		"warehouse_id", req.Key.WarehouseID,
		"quantity", req.Quantity,
		"reference", req.Reference,
	)

	return &res, nil
}

// Release returns a reservation's quantity to the available balance.
// Releasing a non-active reservation is a conflict, not a no-op, so
// double releases surface instead of silently double-crediting.
func (s *Service) Release(ctx context.Context, reservationID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.repo.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}

		if res.Status != StatusActive {
			return apperror.NewConflict("reservation is not active").
				WithDetail("reservation_id", reservationID.String()).
				WithDetail("status", string(res.Status))
		}

		res.markReleased(StatusReleased)
		if err := s.repo.Update(ctx, res); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}

		return s.ledger.ApplyReservedDelta(ctx, res.StockKey, res.Quantity.Neg())
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "reservation released", "reservation_id", reservationID)
	return nil
}

// ReleaseRequest identifies held stock to release by stock key and
// consumer reference. A zero Quantity releases everything matched; a
// positive Quantity releases that much, splitting a reservation it only
// partially covers.
type ReleaseRequest struct {
	Key       entity.StockKey
	Reference string
	Quantity  types.Quantity
}

// ReleaseByReference releases the stock a consumer holds on a key,
// oldest reservation first. Fails with NotFound when no active
// reservation matches, and Conflict when the requested quantity exceeds
// what the reference holds. Returns the quantity released.
func (s *Service) ReleaseByReference(ctx context.Context, req ReleaseRequest) (types.Quantity, error) {
	if req.Reference == "" {
		return 0, apperror.NewValidation("reference is required")
	}
	if req.Quantity.IsNegative() {
		return 0, apperror.NewInvalidQuantity("release quantity must not be negative").
			WithDetail("quantity", req.Quantity.String())
	}

	var released types.Quantity
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		matched, err := s.repo.ListActiveByReferenceForUpdate(ctx, req.Key, req.Reference)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return apperror.NewNotFound("active reservation", req.Reference)
		}

		var held types.Quantity
		for _, res := range matched {
			held += res.Quantity
		}
		releaseAll := req.Quantity.IsZero()
		if !releaseAll && req.Quantity > held {
			return apperror.NewConflict("release exceeds reserved quantity").
				WithDetail("reference", req.Reference).
				WithDetail("requested", req.Quantity.String()).
				WithDetail("reserved", held.String())
		}

		remaining := req.Quantity
		for _, res := range matched {
			if !releaseAll && remaining.IsZero() {
				break
			}
			take := res.Quantity
			if !releaseAll && remaining < take {
				take = remaining
			}

			if take == res.Quantity {
				res.markReleased(StatusReleased)
			} else {
				// Partial: the reservation stays active holding the rest.
				res.Quantity -= take
				res.Touch()
			}
			if err := s.repo.Update(ctx, res); err != nil {
				return fmt.Errorf("update reservation %s: %w", res.ID, err)
			}
			if err := s.ledger.ApplyReservedDelta(ctx, res.StockKey, take.Neg()); err != nil {
				return err
			}

			released += take
			if !releaseAll {
				remaining -= take
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "reservations released",
		"product_id", req.Key.ProductID,
		"warehouse_id", req.Key.WarehouseID,
		"reference", req.Reference,
		"released", released,
	)
	return released, nil
}

// ReleaseExpired releases every active reservation whose expiry has
// passed. Invoked explicitly (a scheduler or an admin endpoint), never by
// a background loop inside the service. Returns the number released.
func (s *Service) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	released := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		expired, err := s.repo.ListExpired(ctx, time.Now().UTC(), limit)
		if err != nil {
			return fmt.Errorf("list expired: %w", err)
		}

		for _, res := range expired {
			res.markReleased(StatusExpired)
			if err := s.repo.Update(ctx, res); err != nil {
				return fmt.Errorf("update reservation %s: %w", res.ID, err)
			}
			if err := s.ledger.ApplyReservedDelta(ctx, res.StockKey, res.Quantity.Neg()); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if released > 0 {
		logger.Info(ctx, "expired reservations released", "count", released)
	}
	return released, nil
}

// Get returns a reservation by ID.
func (s *Service) Get(ctx context.Context, reservationID id.ID) (Reservation, error) {
	return s.repo.GetByID(ctx, reservationID)
}

// ListActiveByKey returns active reservations holding a stock key.
func (s *Service) ListActiveByKey(ctx context.Context, key entity.StockKey) ([]Reservation, error) {
	return s.repo.ListActiveByKey(ctx, key)
}

// Available returns the unreserved balance for a stock key.
func (s *Service) Available(ctx context.Context, key entity.StockKey) (types.Quantity, error) {
	agg, err := s.ledger.GetAggregate(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return agg.Available(), nil
}
