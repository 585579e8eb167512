package blobstore

import (
	"context"
	"time"
)

// EventKind names a storage lifecycle event.
type EventKind string

const (
	EventStored  EventKind = "stored"
	EventDeleted EventKind = "deleted"
)

// Event describes one blob being written or removed.
type Event struct {
	Kind      EventKind
	Key       string
	SizeBytes int64
	At        time.Time
}

// EventSink receives storage events. Sink failures never fail the store
// operation that produced them.
type EventSink interface {
	RecordEvent(ctx context.Context, ev Event) error
}
