package event

import (
	"fmt"
	"time"
)

// Error carries an event-processing failure together with the event and
// subscription identity needed to diagnose it. Handler failures are
// captured as values by the dispatcher's delivery loop; they only become
// a host error at the boundary where a log sink consumes them.
type Error struct {
	EventID        string
	EventType      string
	SubscriptionID string // subscription whose handler failed, if known
	Message        string
	Err            error
	Timestamp      time.Time
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.SubscriptionID != "":
		return fmt.Sprintf("event %s (%s): subscription %s: %s: %v",
			e.EventID, e.EventType, e.SubscriptionID, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("event %s (%s): %s: %v", e.EventID, e.EventType, e.Message, e.Err)
	default:
		return fmt.Sprintf("event %s (%s): %s", e.EventID, e.EventType, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error for the given event.
func NewError(evt Event, message string, err error) *Error {
	return &Error{
		EventID:   evt.ID,
		EventType: evt.Type,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}
