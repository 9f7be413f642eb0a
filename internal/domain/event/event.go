// Package event defines the domain event publishing contract.
// The production implementation is the transactional outbox in
// infrastructure/storage/postgres.
package event

import (
	"context"

	"procura/internal/core/id"
)

// Event is a domain event emitted on document lifecycle transitions.
type Event struct {
	// AggregateType names the entity kind, e.g. "Receiving"
	AggregateType string

	// AggregateID is the entity's ID
	AggregateID id.ID

	// Type names the transition, e.g. "receiving.confirmed"
	Type string

	// Payload is marshaled to JSON by the publisher
	Payload any
}

// Publisher delivers events transactionally with the emitting operation.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards events. Used in tests and tooling.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

var _ Publisher = NopPublisher{}
