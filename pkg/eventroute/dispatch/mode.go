package dispatch

import "fmt"

// Mode selects how a publish delivers to matching handlers.
type Mode string

const (
	// ModeAsync invokes all matching handlers concurrently. Publish
	// completes only after every handler has finished or failed.
	ModeAsync Mode = "async"

	// ModeSync invokes handlers one at a time in registration order,
	// each fully completing before the next starts.
	ModeSync Mode = "sync"
)

// Validate rejects modes outside {sync, async}. An unsupported mode is
// a programmer error; Publish fails fast before attempting delivery.
func (m Mode) Validate() error {
	switch m {
	case ModeAsync, ModeSync:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
	}
}

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}
