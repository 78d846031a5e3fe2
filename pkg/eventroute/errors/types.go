package errors

import "fmt"

// TimeoutError indicates a handler exceeded its delivery deadline.
type TimeoutError struct {
	Operation string
	Duration  string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// StoreUnavailableError indicates the event store backend could not be
// reached. Correlation proceeds in-memory when it sees one of these.
type StoreUnavailableError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("event store %s unavailable: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a subscription or event was rejected before
// any delivery was attempted.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
