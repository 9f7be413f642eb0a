package entity

import (
	"context"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

// Document is the base type for business transactions.
// Examples: PurchaseOrder, Receiving, Return.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Confirmed indicates that the document's stock effect has been recorded
	// in the ledger. A confirmed document is edited and deleted through the
	// reconciliation engine, never through plain saves.
	Confirmed bool `db:"confirmed" json:"confirmed"`

	// ConfirmedAt is when the document was first confirmed
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// MarkConfirmed sets the confirmed flag and timestamp.
func (d *Document) MarkConfirmed() {
	now := time.Now().UTC()
	d.Confirmed = true
	d.ConfirmedAt = &now
	d.Touch()
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}

// Ref returns the structured ledger correlation key for this document.
func (d *Document) Ref(docType string) DocumentRef {
	return DocumentRef{Type: docType, ID: d.ID, Number: d.Number}
}

// DocumentRef identifies the document that caused a ledger entry.
// Ledger correlation uses (Type, ID); Number is denormalized for display
// and document-journal queries.
type DocumentRef struct {
	Type   string `db:"document_type" json:"documentType"`
	ID     id.ID  `db:"document_id" json:"documentId"`
	Number string `db:"document_number" json:"documentNumber"`
}

// IsZero reports whether the reference is unset.
func (r DocumentRef) IsZero() bool {
	return r.Type == "" && id.IsNil(r.ID)
}
