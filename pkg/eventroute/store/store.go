// Package store provides durable event storage for replay and audit.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// Store persists published events. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append stores an event. Appending an event whose ID is already
	// stored is a no-op: the first write wins and no error is
	// returned.
	Append(ctx context.Context, evt event.Event) error

	// GetByID retrieves an event by its unique ID.
	// Returns ErrNotFound if no event with that ID is stored.
	GetByID(ctx context.Context, id string) (event.Event, error)

	// Query returns stored events matching every set filter, oldest
	// first. No matches yields an empty slice, not an error.
	Query(ctx context.Context, q Query) ([]event.Event, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Query filters stored events. Zero-value fields are ignored; set
// fields combine with AND.
type Query struct {
	// Type filters by exact event type.
	Type string

	// Source filters by exact event source.
	Source string

	// CorrelationID filters by correlation group.
	CorrelationID string

	// CausationID filters by direct cause.
	CausationID string

	// Start excludes events before this instant (inclusive).
	Start time.Time

	// End excludes events at or after this instant (exclusive).
	End time.Time

	// Limit caps the number of returned events. Zero means no cap.
	Limit int
}

// Matches reports whether the event passes every set filter.
func (q Query) Matches(evt event.Event) bool {
	if q.Type != "" && evt.Type != q.Type {
		return false
	}
	if q.Source != "" && evt.Source != q.Source {
		return false
	}
	if q.CorrelationID != "" && evt.CorrelationID != q.CorrelationID {
		return false
	}
	if q.CausationID != "" && evt.CausationID != q.CausationID {
		return false
	}
	if !q.Start.IsZero() && evt.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !evt.Timestamp.Before(q.End) {
		return false
	}
	return true
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates no event with the requested ID is stored.
	ErrNotFound = errors.New("event not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("event store closed")
)
