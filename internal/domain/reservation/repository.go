package reservation

import (
	"context"
	"time"

	"procura/internal/core/entity"
	"procura/internal/core/id"
)

// Repository defines persistence operations for reservations.
type Repository interface {
	// Create inserts a new reservation
	Create(ctx context.Context, r Reservation) error

	// GetByID returns a reservation or apperror NotFound
	GetByID(ctx context.Context, reservationID id.ID) (Reservation, error)

	// GetByIDForUpdate returns the reservation with a row lock held
	GetByIDForUpdate(ctx context.Context, reservationID id.ID) (Reservation, error)

	// Update persists status and release timestamps with optimistic locking
	Update(ctx context.Context, r Reservation) error

	// ListActiveByKey returns active reservations for a stock key
	ListActiveByKey(ctx context.Context, key entity.StockKey) ([]Reservation, error)

	// ListActiveByReferenceForUpdate returns active reservations matching
	// a stock key and consumer reference, oldest first, locked for update
	ListActiveByReferenceForUpdate(ctx context.Context, key entity.StockKey, reference string) ([]Reservation, error)

	// ListExpired returns active reservations whose expiry has passed,
	// locked for update so the sweep can release them
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
}
