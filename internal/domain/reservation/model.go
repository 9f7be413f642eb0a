// Package reservation manages soft allocations of on-hand stock.
package reservation

import (
	"context"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// Status is the reservation lifecycle state.
type Status string

const (
	// StatusActive - holding stock
	StatusActive Status = "active"
	// StatusReleased - explicitly released, stock returned to available
	StatusReleased Status = "released"
	// StatusExpired - released by expiry sweep
	StatusExpired Status = "expired"
)

// Reservation holds a quantity of on-hand stock for a downstream consumer.
// Reservations never touch the ledger: they only move quantity between the
// available and reserved buckets of the stock aggregate.
type Reservation struct {
	entity.BaseEntity

	entity.StockKey

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Status   Status         `db:"status" json:"status"`

	// Reference identifies the consumer (sales order, transfer, etc.)
	Reference string `db:"reference" json:"reference,omitempty"`

	// ExpiresAt is an optional expiry; nil reservations never expire
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ReleasedAt *time.Time `db:"released_at" json:"releasedAt,omitempty"`
}

// NewReservation creates an active reservation.
func NewReservation(key entity.StockKey, qty types.Quantity, reference string, expiresAt *time.Time) Reservation {
	return Reservation{
		BaseEntity: entity.NewBaseEntity(),
		StockKey:   key,
		Quantity:   qty,
		Status:     StatusActive,
		Reference:  reference,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate implements entity.Validatable.
func (r *Reservation) Validate(_ context.Context) error {
	if !r.Quantity.IsPositive() {
		return apperror.NewInvalidQuantity("reservation quantity must be positive")
	}
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product_id is required").WithDetail("field", "product_id")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse_id is required").WithDetail("field", "warehouse_id")
	}
	return nil
}

// IsExpired reports whether the reservation has passed its expiry.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// markReleased transitions to a terminal state.
func (r *Reservation) markReleased(status Status) {
	now := time.Now().UTC()
	r.Status = status
	r.ReleasedAt = &now
	r.Touch()
}
