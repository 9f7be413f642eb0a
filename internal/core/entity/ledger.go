package entity

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
)

// TransactionType classifies the business cause of a ledger entry.
type TransactionType string

const (
	// TransactionPurchase - goods received from a supplier
	TransactionPurchase TransactionType = "purchase"
	// TransactionReturn - goods sent back to a supplier
	TransactionReturn TransactionType = "return"
	// TransactionAdjustment - manual stock correction
	TransactionAdjustment TransactionType = "adjustment"
	// TransactionOpeningBalance - initial stock load
	TransactionOpeningBalance TransactionType = "opening_balance"
)

// OperationTag distinguishes the lifecycle phase that produced an entry.
// Stored as a proper column; correlation never relies on string suffixes
// embedded in document numbers.
type OperationTag string

const (
	// TagOriginal - entry written by the first confirmation of a document
	TagOriginal OperationTag = "original"
	// TagAdjustment - compensating entry written when a confirmed document is edited
	TagAdjustment OperationTag = "adjustment"
	// TagReversal - compensating entry written when a confirmed document is deleted
	TagReversal OperationTag = "reversal"
)

// StockKey is the unit of stock accounting: product within a warehouse,
// optionally narrowed to a storage location. LocationID equal to uuid.Nil
// means warehouse-level granularity. The type is comparable and is used as
// a map key by the reconciliation engine.
type StockKey struct {
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
	LocationID  id.ID `db:"location_id" json:"locationId,omitempty"`
}

// HasLocation reports whether the key is narrowed to a storage location.
func (k StockKey) HasLocation() bool {
	return !id.IsNil(k.LocationID)
}

// BatchInfo carries lot metadata attached to a ledger entry.
type BatchInfo struct {
	LotNumber  string     `db:"lot_number" json:"lotNumber,omitempty"`
	BatchDate  *time.Time `db:"batch_date" json:"batchDate,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
}

// LedgerEntry is one signed quantity movement in the append-only stock ledger.
// Entries are immutable: corrections are made by inserting new compensating
// entries, never by mutating or deleting existing ones. The only destruction
// path is the rollback of the transaction that inserted the entry.
type LedgerEntry struct {
	// EntryID is unique identifier for this entry (UUIDv7)
	EntryID id.ID `db:"entry_id" json:"entryId"`

	StockKey

	// SignedQuantity: positive = increase, negative = decrease
	SignedQuantity types.Quantity `db:"signed_quantity" json:"signedQuantity"`

	// Type is the business transaction classification
	Type TransactionType `db:"transaction_type" json:"transactionType"`

	// Document that caused this entry
	DocumentRef

	// OpTag marks which lifecycle phase wrote the entry
	OpTag OperationTag `db:"op_tag" json:"opTag"`

	// UnitCost is the per-unit cost for increases (zero for decreases)
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	BatchInfo

	// CreatedAt is when the entry was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewLedgerEntry creates an entry with generated EntryID and timestamp.
// The quantity is signed; callers decide direction.
func NewLedgerEntry(
	key StockKey,
	signedQty types.Quantity,
	txType TransactionType,
	ref DocumentRef,
	tag OperationTag,
	unitCost types.Money,
	batch BatchInfo,
) LedgerEntry {
	return LedgerEntry{
		EntryID:        id.New(),
		StockKey:       key,
		SignedQuantity: signedQty,
		Type:           txType,
		DocumentRef:    ref,
		OpTag:          tag,
		UnitCost:       unitCost,
		BatchInfo:      batch,
		CreatedAt:      time.Now().UTC(),
	}
}

// StockAggregate is the materialized balance for one StockKey.
// Invariant: OnHand == sum of ledger entry signed quantities for the key.
// Rows are created lazily on first movement and never deleted; zero is a
// valid steady state. Mutated only by the ledger repository as a side
// effect of inserting an entry or applying a reservation delta.
type StockAggregate struct {
	StockKey

	OnHand    types.Quantity `db:"on_hand" json:"onHand"`
	Reserved  types.Quantity `db:"reserved" json:"reserved"`
	InTransit types.Quantity `db:"in_transit" json:"inTransit"`

	// AverageCost is a weighted moving average maintained on increases
	AverageCost types.Money `db:"average_cost" json:"averageCost"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Available returns the quantity that can still be reserved.
func (a StockAggregate) Available() types.Quantity {
	return a.OnHand - a.Reserved
}
