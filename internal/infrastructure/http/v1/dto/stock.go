package dto

import (
	"time"

	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/ledger"
)

// StockAdjustmentRequest records a manual correction or an opening
// balance load.
type StockAdjustmentRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	WarehouseID string `json:"warehouseId" binding:"required"`
	LocationID  string `json:"locationId,omitempty"`

	Quantity types.Quantity `json:"quantity" binding:"required,gt=0"`

	// Direction is "in" (default) or "out"
	Direction string `json:"direction,omitempty"`

	UnitCost       types.Money `json:"unitCost,omitempty"`
	OpeningBalance bool        `json:"openingBalance,omitempty"`
	Reason         string      `json:"reason,omitempty"`
}

// ToAdjustmentRequest converts the DTO to a domain request.
func (r *StockAdjustmentRequest) ToAdjustmentRequest() ledger.AdjustmentRequest {
	return ledger.AdjustmentRequest{
		Key: entity.StockKey{
			ProductID:   parseID(r.ProductID),
			WarehouseID: parseID(r.WarehouseID),
			LocationID:  parseID(r.LocationID),
		},
		Quantity:       r.Quantity,
		Direction:      ledger.AdjustmentDirection(r.Direction),
		UnitCost:       r.UnitCost,
		OpeningBalance: r.OpeningBalance,
		Reason:         r.Reason,
	}
}

// --- Response DTOs for the stock ledger ---

// StockBalanceResponse represents a materialized stock balance.
type StockBalanceResponse struct {
	ProductID      string         `json:"productId"`
	WarehouseID    string         `json:"warehouseId"`
	LocationID     string         `json:"locationId,omitempty"`
	OnHand         types.Quantity `json:"onHand"`
	Reserved       types.Quantity `json:"reserved"`
	Available      types.Quantity `json:"available"`
	AverageCost    types.Money    `json:"averageCost"`
	LastMovementAt *time.Time     `json:"lastMovementAt,omitempty"`
}

// FromStockAggregate converts entity to response DTO.
func FromStockAggregate(a entity.StockAggregate) StockBalanceResponse {
	resp := StockBalanceResponse{
		ProductID:   a.ProductID.String(),
		WarehouseID: a.WarehouseID.String(),
		OnHand:      a.OnHand,
		Reserved:    a.Reserved,
		Available:   a.Available(),
		AverageCost: a.AverageCost,
	}
	if !id.IsNil(a.LocationID) {
		resp.LocationID = a.LocationID.String()
	}
	// Zero-value time means the key never moved; the API returns null
	// instead of "0001-01-01".
	if !a.LastMovementAt.IsZero() {
		val := a.LastMovementAt
		resp.LastMovementAt = &val
	}
	return resp
}

// StockBalanceListResponse represents a list of stock balances.
type StockBalanceListResponse struct {
	Items []StockBalanceResponse `json:"items"`
}

// LedgerEntryResponse represents one ledger entry.
type LedgerEntryResponse struct {
	EntryID         string         `json:"entryId"`
	ProductID       string         `json:"productId"`
	WarehouseID     string         `json:"warehouseId"`
	LocationID      string         `json:"locationId,omitempty"`
	SignedQuantity  types.Quantity `json:"signedQuantity"`
	TransactionType string         `json:"transactionType"`
	DocumentType    string         `json:"documentType"`
	DocumentID      string         `json:"documentId"`
	DocumentNumber  string         `json:"documentNumber"`
	OpTag           string         `json:"opTag"`
	UnitCost        types.Money    `json:"unitCost"`
	LotNumber       string         `json:"lotNumber,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// FromLedgerEntry converts entity to response DTO.
func FromLedgerEntry(e entity.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		EntryID:         e.EntryID.String(),
		ProductID:       e.ProductID.String(),
		WarehouseID:     e.WarehouseID.String(),
		SignedQuantity:  e.SignedQuantity,
		TransactionType: string(e.Type),
		DocumentType:    e.DocumentRef.Type,
		DocumentID:      e.DocumentRef.ID.String(),
		DocumentNumber:  e.DocumentRef.Number,
		OpTag:           string(e.OpTag),
		UnitCost:        e.UnitCost,
		LotNumber:       e.LotNumber,
		CreatedAt:       e.CreatedAt,
	}
	if !id.IsNil(e.LocationID) {
		resp.LocationID = e.LocationID.String()
	}
	return resp
}

// LedgerEntryListResponse represents a document's ledger trail.
type LedgerEntryListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	TotalCount int                   `json:"totalCount"`
}

// TurnoverRowResponse is one line of a turnover report.
type TurnoverRowResponse struct {
	ProductID   string         `json:"productId"`
	WarehouseID string         `json:"warehouseId"`
	LocationID  string         `json:"locationId,omitempty"`
	Opening     types.Quantity `json:"opening"`
	Increase    types.Quantity `json:"increase"`
	Decrease    types.Quantity `json:"decrease"`
	Closing     types.Quantity `json:"closing"`
}

// FromTurnoverRow converts a report row to response DTO.
func FromTurnoverRow(r ledger.TurnoverRow) TurnoverRowResponse {
	resp := TurnoverRowResponse{
		ProductID:   r.ProductID.String(),
		WarehouseID: r.WarehouseID.String(),
		Opening:     r.Opening,
		Increase:    r.Increase,
		Decrease:    r.Decrease,
		Closing:     r.Closing,
	}
	if !id.IsNil(r.LocationID) {
		resp.LocationID = r.LocationID.String()
	}
	return resp
}

// TurnoverListResponse represents a turnover report.
type TurnoverListResponse struct {
	From  time.Time             `json:"from"`
	To    time.Time             `json:"to"`
	Items []TurnoverRowResponse `json:"items"`
}
