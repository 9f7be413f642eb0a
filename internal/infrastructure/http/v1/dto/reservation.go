package dto

import (
	"time"

	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reservation"
)

// --- Request DTOs ---

// CreateReservationRequest represents a request to reserve stock.
type CreateReservationRequest struct {
	ProductID   string         `json:"productId" binding:"required"`
	WarehouseID string         `json:"warehouseId" binding:"required"`
	LocationID  string         `json:"locationId,omitempty"`
	Quantity    types.Quantity `json:"quantity" binding:"required,gt=0"`
	Reference   string         `json:"reference,omitempty"`

	// TTLSeconds sets an expiry; zero means the reservation never expires.
	TTLSeconds int `json:"ttlSeconds,omitempty" binding:"gte=0"`
}

// ToReserveRequest converts the DTO to a service request.
func (r *CreateReservationRequest) ToReserveRequest() reservation.ReserveRequest {
	return reservation.ReserveRequest{
		Key: entity.StockKey{
			ProductID:   parseID(r.ProductID),
			WarehouseID: parseID(r.WarehouseID),
			LocationID:  parseID(r.LocationID),
		},
		Quantity:  r.Quantity,
		Reference: r.Reference,
		TTL:       time.Duration(r.TTLSeconds) * time.Second,
	}
}

// ReleaseReservationRequest releases stock a consumer reference holds on
// one stock key. Zero quantity releases everything matched.
type ReleaseReservationRequest struct {
	ProductID   string         `json:"productId" binding:"required"`
	WarehouseID string         `json:"warehouseId" binding:"required"`
	LocationID  string         `json:"locationId,omitempty"`
	Reference   string         `json:"reference" binding:"required"`
	Quantity    types.Quantity `json:"quantity,omitempty" binding:"gte=0"`
}

// ToReleaseRequest converts the DTO to a service request.
func (r *ReleaseReservationRequest) ToReleaseRequest() reservation.ReleaseRequest {
	return reservation.ReleaseRequest{
		Key: entity.StockKey{
			ProductID:   parseID(r.ProductID),
			WarehouseID: parseID(r.WarehouseID),
			LocationID:  parseID(r.LocationID),
		},
		Reference: r.Reference,
		Quantity:  r.Quantity,
	}
}

// --- Response DTOs ---

// ReservationResponse represents a reservation in API responses.
type ReservationResponse struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId"`
	WarehouseID string         `json:"warehouseId"`
	LocationID  string         `json:"locationId,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	Status      string         `json:"status"`
	Reference   string         `json:"reference,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	ReleasedAt  *time.Time     `json:"releasedAt,omitempty"`
}

// FromReservation converts domain entity to response DTO.
func FromReservation(r reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:          r.ID.String(),
		ProductID:   r.ProductID.String(),
		WarehouseID: r.WarehouseID.String(),
		Quantity:    r.Quantity,
		Status:      string(r.Status),
		Reference:   r.Reference,
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		ReleasedAt:  r.ReleasedAt,
	}
	if !id.IsNil(r.LocationID) {
		resp.LocationID = r.LocationID.String()
	}
	return resp
}

// ReservationListResponse represents a list of reservations.
type ReservationListResponse struct {
	Items      []ReservationResponse `json:"items"`
	TotalCount int                   `json:"totalCount"`
}

// ReleaseReservationResponse reports the quantity returned to available.
type ReleaseReservationResponse struct {
	Released types.Quantity `json:"released"`
}

// ReleaseExpiredResponse reports an expiry sweep result.
type ReleaseExpiredResponse struct {
	Released int `json:"released"`
}
