// Package audit defines the document audit trail contract.
// The production implementation persists zstd-compressed snapshots in
// infrastructure/storage/postgres.
package audit

import (
	"context"

	"procura/internal/core/id"
)

// Entry is one audit record: a snapshot of an entity at a lifecycle point.
type Entry struct {
	EntityType string
	EntityID   id.ID

	// Action names the transition, e.g. "confirm", "adjust", "delete"
	Action string

	// Actor is the user who performed the action, if known
	Actor string

	// Snapshot is marshaled and compressed by the recorder
	Snapshot any
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// NopRecorder discards entries. Used in tests.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Entry) error { return nil }

var _ Recorder = NopRecorder{}
