// Package event defines the core value types for the eventroute engine:
// the immutable Event record, the Pattern predicate used to select
// subscribers, and the Handler contract consumers implement.
//
// Events are immutable once created - any modification (derivation,
// correlation enrichment) produces a new Event and never touches the
// original. The zero Event is not valid; construct events with New.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened.
type Event struct {
	// ID uniquely identifies the event. Generated at construction,
	// never reused for the lifetime of a store.
	ID string `json:"id"`

	// Type names the event's category, e.g. "file.save" or "build.failure".
	Type string `json:"type"`

	// Source identifies the producer.
	Source string `json:"source"`

	// Timestamp is the creation time. time.Now carries a monotonic
	// reading, so ordering is stable within a single process.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID groups all events of one causal chain.
	// Empty on the first event of a chain until the correlator assigns one.
	CorrelationID string `json:"correlation_id,omitempty"`

	// CausationID is the ID of the event that directly caused this one.
	CausationID string `json:"causation_id,omitempty"`

	// Payload is the event content and the attribute space patterns
	// filter against.
	Payload map[string]any `json:"payload,omitempty"`

	// Metadata holds transport and bookkeeping data. Never matched against.
	Metadata map[string]any `json:"metadata,omitempty"`

	// IsReplay distinguishes replayed historical events from live ones,
	// so side-effecting handlers can decide whether to re-run.
	IsReplay bool `json:"is_replay,omitempty"`
}

// Validation errors returned by New.
var (
	ErrEmptyType   = errors.New("event type cannot be empty")
	ErrEmptySource = errors.New("event source cannot be empty")
)

// Option configures event creation.
type Option func(*Event)

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithCorrelationID sets the correlation ID linking related events.
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithCausationID sets the ID of the event that caused this one.
func WithCausationID(id string) Option {
	return func(e *Event) {
		e.CausationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.Timestamp = t
	}
}

// WithMetadata sets transport metadata on the event.
func WithMetadata(md map[string]any) Option {
	return func(e *Event) {
		e.Metadata = md
	}
}

// WithReplay marks the event as a replayed historical event.
func WithReplay() Option {
	return func(e *Event) {
		e.IsReplay = true
	}
}

// New creates an event with the given type, source, and payload.
// Type and source must be non-empty; a nil payload is allowed.
func New(eventType, source string, payload map[string]any, opts ...Option) (Event, error) {
	if eventType == "" {
		return Event{}, ErrEmptyType
	}
	if source == "" {
		return Event{}, ErrEmptySource
	}

	evt := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	for _, opt := range opts {
		opt(&evt)
	}

	return evt, nil
}

// MustNew is New for statically known type and source, panicking on
// validation failure. Intended for tests and example code.
func MustNew(eventType, source string, payload map[string]any, opts ...Option) Event {
	evt, err := New(eventType, source, payload, opts...)
	if err != nil {
		panic(err)
	}
	return evt
}

// Derive creates a child event that continues this event's causal chain.
// The child inherits the correlation ID (seeding it from this event's ID
// when no chain exists yet) and records this event as its cause.
func (e Event) Derive(eventType string, payload map[string]any, opts ...Option) (Event, error) {
	correlationID := e.CorrelationID
	if correlationID == "" {
		correlationID = e.ID
	}

	base := []Option{
		WithCorrelationID(correlationID),
		WithCausationID(e.ID),
	}
	return New(eventType, e.Source, payload, append(base, opts...)...)
}

// WithCorrelation returns a copy of the event carrying the given
// correlation ID. The copy keeps the same ID and content; the original
// is untouched. This is how the correlator enriches uncorrelated events.
func (e Event) WithCorrelation(correlationID string) Event {
	enriched := e
	enriched.CorrelationID = correlationID
	return enriched
}

// Correlated reports whether the event has been assigned to a chain.
func (e Event) Correlated() bool {
	return e.CorrelationID != ""
}

// Handler processes a delivered event. The dispatcher interprets no
// return value beyond the error; a non-nil error marks the delivery as
// failed without affecting sibling deliveries.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
